package membank

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentkiln/stepforge/internal/errorkind"
	"github.com/agentkiln/stepforge/internal/manifest"
)

// JobMetadata is the subset of jobspace.Job.Metadata() that distillation
// needs, passed in directly so this package does not depend on jobspace.
type JobMetadata struct {
	JobID    string
	TaskName string
}

// DistillSuccessPatterns produces a proposal for a systemPatterns.md
// update summarizing a completed job's artifacts and their validation
// outcomes. It never writes to system_patterns directly: a human must
// review and merge the proposal, matching the source task's
// "propose, don't auto-apply" memory update policy.
func DistillSuccessPatterns(job JobMetadata, m *manifest.Manifest, outputPath string) (string, error) {
	artifacts := m.All()

	keys := make([]string, 0, len(artifacts))
	for k := range artifacts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	validated := 0
	for _, k := range keys {
		if artifacts[k].Validated {
			validated++
		}
	}
	total := len(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "# Success Pattern Proposal\n")
	fmt.Fprintf(&b, "\n## Job: %s (%s)\n", job.TaskName, job.JobID)
	fmt.Fprintf(&b, "\n### Outcomes\n")
	fmt.Fprintf(&b, "- Artifacts created: %d\n", total)
	fmt.Fprintf(&b, "- Artifacts validated: %d\n", validated)

	if total > 0 {
		fmt.Fprintf(&b, "\n### Artifacts\n")
		for _, k := range keys {
			status := "x"
			if artifacts[k].Validated {
				status = "v"
			}
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", status, k, artifacts[k].ProducerStep)
		}
	}

	fmt.Fprintf(&b, "\n### Suggested Pattern\n")
	fmt.Fprintf(&b, "**Task Type**: %s\n", job.TaskName)
	fmt.Fprintf(&b, "**Success Criteria**: %d/%d artifacts validated\n\n", validated, total)
	fmt.Fprintf(&b, "**Abstracted Steps**:\n")
	fmt.Fprintf(&b, "(Edit this section to describe the general pattern, removing specific file names/content)\n")

	proposal := b.String()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return "", errorkind.Wrap(errorkind.Workspace, "creating distill output directory", err)
	}
	if err := os.WriteFile(outputPath, []byte(proposal), 0o644); err != nil {
		return "", errorkind.Wrap(errorkind.Workspace, "writing success pattern proposal", err)
	}

	return proposal, nil
}
