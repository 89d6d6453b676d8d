// Package jobspace owns job identity and the on-disk workdir layout a
// job runs in: logs/, artifacts/, and cache/ subdirectories under a
// job-specific root.
package jobspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/hashio"
	"golang.org/x/sync/errgroup"
)

// Job is a single run's identity and workspace handle.
type Job struct {
	ID       string
	TaskName string
	Inputs   map[string]string

	workdir      string
	logsDir      string
	artifactsDir string
	cacheDir     string
}

// New builds a Job. When id is empty, a deterministic job_id is
// generated as "<timestamp>_<fingerprint>", where the timestamp has
// second resolution and the fingerprint is derived from inputs, so
// that repeated invocations of the same task with the same inputs
// within the same second produce the same job_id.
func New(cfg *config.Config, taskName string, inputs map[string]string, id string, now time.Time) (*Job, error) {
	jobID := id
	if jobID == "" {
		fingerprint, err := hashio.ShortInputFingerprint(inputs)
		if err != nil {
			return nil, errorkind.Wrap(errorkind.Workspace, "computing job id fingerprint", err)
		}
		jobID = fmt.Sprintf("%s_%s", now.Format("20060102_150405"), fingerprint)
	}

	workdir := strings.ReplaceAll(cfg.Paths.JobRootTemplate, "{job_id}", jobID)

	j := &Job{
		ID:           jobID,
		TaskName:     taskName,
		Inputs:       inputs,
		workdir:      workdir,
		logsDir:      filepath.Join(workdir, cfg.Paths.LogsDir),
		artifactsDir: filepath.Join(workdir, cfg.Paths.ArtifactsDir),
		cacheDir:     filepath.Join(workdir, cfg.Paths.CacheDir),
	}
	return j, nil
}

// SetupWorkdir creates the job's directory tree. The three
// subdirectories are independent of each other, so they are created
// concurrently via an errgroup bounded to the subdirectory count.
func (j *Job) SetupWorkdir(ctx context.Context) error {
	if err := os.MkdirAll(j.workdir, 0o755); err != nil {
		return errorkind.Wrap(errorkind.Workspace, "creating job workdir", err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, dir := range []string{j.logsDir, j.artifactsDir, j.cacheDir} {
		dir := dir
		g.Go(func() error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errorkind.Wrap(errorkind.Workspace, fmt.Sprintf("creating %s", dir), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Workdir returns the job's root directory.
func (j *Job) Workdir() string { return j.workdir }

// ArtifactPath returns the path an artifact with the given key would
// be stored at.
func (j *Job) ArtifactPath(artifactKey string) string {
	return filepath.Join(j.artifactsDir, artifactKey)
}

// LogPath returns the path a named log file would be stored at.
func (j *Job) LogPath(logName string) string {
	return filepath.Join(j.logsDir, logName)
}

// CachePath returns the path a named cache entry would be stored at.
func (j *Job) CachePath(cacheKey string) string {
	return filepath.Join(j.cacheDir, cacheKey)
}

// Metadata returns a JSON-serializable description of the job,
// suitable for inclusion in the execution summary.
func (j *Job) Metadata() map[string]any {
	return map[string]any{
		"job_id":     j.ID,
		"task_name":  j.TaskName,
		"inputs":     j.Inputs,
		"workdir":    j.workdir,
		"go_version": runtime.Version(),
	}
}
