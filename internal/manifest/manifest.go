// Package manifest implements the content-addressed artifact ledger
// that makes replay deterministic: every artifact a step produces is
// registered here with its producer, inputs, schema, validation state,
// and (optionally) its content hash, before the next step is allowed
// to depend on it.
package manifest

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/agentkiln/stepforge/internal/config"
	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/hashio"
	"github.com/nightlyone/lockfile"
)

const schemaVersion = 1

// Record describes one artifact entry in the manifest.
type Record struct {
	Key             string    `json:"key"`
	Path            string    `json:"path"`
	ProducerStep    string    `json:"producer_step"`
	InputsUsed      []string  `json:"inputs_used"`
	SchemaUsed      string    `json:"schema_used,omitempty"`
	Validated       bool      `json:"validated"`
	CreatedAt       time.Time `json:"created_at"`
	SHA256          string    `json:"sha256,omitempty"`
	GoRuntime       string    `json:"go_runtime,omitempty"`
}

type document struct {
	SchemaVersion int               `json:"schema_version"`
	Artifacts     map[string]Record `json:"artifacts"`
}

// Manifest is the decision point for deterministic replay: whether a
// given artifact key can be reused or must be regenerated.
type Manifest struct {
	path string
	cfg  *config.Config
	lock lockfile.Lockfile
	doc  document
}

// Open loads an existing manifest.json at path, or starts an empty one
// if none exists, and acquires an exclusive lock file beside it
// (path + ".lock") for the lifetime of the returned Manifest. Call
// Close to release it. A manifest whose schema_version is not the
// current one is rejected with a ManifestIOError.
func Open(cfg *config.Config, path string) (*Manifest, error) {
	lockPath, err := filepath.Abs(path + ".lock")
	if err != nil {
		return nil, errorkind.Wrap(errorkind.ManifestIO, "resolving lock path", err)
	}
	lf, err := lockfile.New(lockPath)
	if err != nil {
		return nil, errorkind.Wrap(errorkind.ManifestIO, "creating lockfile handle", err)
	}
	// TryLock succeeds again for the process that already owns the lock,
	// so a second Open from this process is refused here.
	if owner, err := lf.GetOwner(); err == nil && owner.Pid == os.Getpid() {
		return nil, errorkind.ManifestIOErrorf("manifest %s is already open in this process", path)
	}
	if err := lf.TryLock(); err != nil {
		return nil, errorkind.Wrap(errorkind.ManifestIO, "acquiring exclusive manifest lock", err)
	}

	m := &Manifest{path: path, cfg: cfg, lock: lf, doc: document{SchemaVersion: schemaVersion, Artifacts: map[string]Record{}}}

	found, err := hashio.ReadJSON(path, &m.doc)
	if err != nil {
		_ = lf.Unlock()
		return nil, errorkind.Wrap(errorkind.ManifestIO, "loading manifest", err)
	}
	if !found {
		m.doc = document{SchemaVersion: schemaVersion, Artifacts: map[string]Record{}}
	}
	if m.doc.SchemaVersion != schemaVersion {
		_ = lf.Unlock()
		return nil, errorkind.ManifestIOErrorf("manifest %s has unsupported schema_version %d (want %d)", path, m.doc.SchemaVersion, schemaVersion)
	}
	if m.doc.Artifacts == nil {
		m.doc.Artifacts = map[string]Record{}
	}
	return m, nil
}

// Close releases the manifest's exclusive lock.
func (m *Manifest) Close() error {
	if err := m.lock.Unlock(); err != nil {
		return errorkind.Wrap(errorkind.ManifestIO, "releasing manifest lock", err)
	}
	return nil
}

// AddArtifactInput carries the fields of a new artifact registration.
type AddArtifactInput struct {
	Key          string
	Path         string
	ProducerStep string
	InputsUsed   []string
	SchemaUsed   string
	Validated    bool
	Now          time.Time
}

// Add registers (or overwrites) an artifact entry and persists the
// manifest immediately, so a crash mid-run leaves the manifest
// consistent with whatever artifacts actually completed.
func (m *Manifest) Add(in AddArtifactInput) error {
	rec := Record{
		Key:          in.Key,
		Path:         in.Path,
		ProducerStep: in.ProducerStep,
		InputsUsed:   in.InputsUsed,
		SchemaUsed:   in.SchemaUsed,
		Validated:    in.Validated,
		CreatedAt:    in.Now,
	}

	if m.cfg.Artifacts.IncludeHashes {
		if _, err := os.Stat(in.Path); err == nil {
			hash, err := hashio.ComputeFileHash(in.Path)
			if err != nil {
				return errorkind.Wrap(errorkind.ManifestIO, "hashing artifact", err)
			}
			rec.SHA256 = hash
		}
	}
	if m.cfg.Artifacts.IncludeToolVersions {
		rec.GoRuntime = runtime.Version()
	}

	m.doc.Artifacts[in.Key] = rec
	return m.save()
}

// Get returns the record for key, if present.
func (m *Manifest) Get(key string) (Record, bool) {
	rec, ok := m.doc.Artifacts[key]
	return rec, ok
}

// IsValidated reports whether key is present and marked validated.
func (m *Manifest) IsValidated(key string) bool {
	rec, ok := m.doc.Artifacts[key]
	return ok && rec.Validated
}

// ShouldReuse decides whether an existing artifact can stand in for
// re-running its producing step: reuse is enabled in config, the
// entry exists, its file is still present, it is marked validated,
// and (when hashing is enabled) its content hash still matches.
func (m *Manifest) ShouldReuse(key string) bool {
	if !m.cfg.Artifacts.ReuseIfValidated {
		return false
	}
	rec, ok := m.doc.Artifacts[key]
	if !ok {
		return false
	}
	if _, err := os.Stat(rec.Path); err != nil {
		return false
	}
	if !rec.Validated {
		return false
	}
	if m.cfg.Artifacts.IncludeHashes && rec.SHA256 != "" {
		current, err := hashio.ComputeFileHash(rec.Path)
		if err != nil || current != rec.SHA256 {
			return false
		}
	}
	return true
}

// MarkValidated flips an existing artifact's validated flag and
// persists the manifest. It is a no-op if the key is unknown.
func (m *Manifest) MarkValidated(key string) error {
	rec, ok := m.doc.Artifacts[key]
	if !ok {
		return nil
	}
	rec.Validated = true
	m.doc.Artifacts[key] = rec
	return m.save()
}

// All returns every artifact record, keyed by artifact key.
func (m *Manifest) All() map[string]Record {
	out := make(map[string]Record, len(m.doc.Artifacts))
	for k, v := range m.doc.Artifacts {
		out[k] = v
	}
	return out
}

func (m *Manifest) save() error {
	if err := hashio.WriteJSON(m.path, m.doc, 0o644); err != nil {
		return errorkind.Wrap(errorkind.ManifestIO, "saving manifest", err)
	}
	return nil
}
