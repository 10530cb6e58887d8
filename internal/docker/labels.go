package docker

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys used for assay containers
const (
	LabelManaged   = "assay.managed"
	LabelProject   = "assay.project"
	LabelRunID     = "assay.run_id"
	LabelWorkDir   = "assay.workdir"
	LabelComponent = "assay.component"
)

// BuildLabels creates the standard label set for assay containers.
// All parameters are required except component.
func BuildLabels(project, runID, workDir, component string) map[string]string {
	labels := map[string]string{
		LabelManaged: "true",
		LabelProject: project,
		LabelRunID:   runID,
		LabelWorkDir: workDir,
	}

	if component != "" {
		labels[LabelComponent] = component
	}

	return labels
}

// GenerateRunID creates a new UUID for a pipeline run.
func GenerateRunID() string {
	return uuid.New().String()
}

// FingerprintContainerName returns the one-shot generator container name for a run.
// Only the first 8 characters of the run ID are used.
func FingerprintContainerName(project, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("assay-fingerprint-%s-%s", project, short)
}
