package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// Stage names the pipeline stage that produced an artefact.
type Stage string

const (
	// StageClean is the deduplicated, null-filtered record set
	StageClean Stage = "clean"

	// StageFeatures is the fingerprint descriptor table
	StageFeatures Stage = "features"

	// StageAssemble is the model-ready dataset plus the retained target scaler
	StageAssemble Stage = "assemble"

	// StageTrain is the outcome of the training orchestrator
	StageTrain Stage = "train"

	// StagePredict is the terminal prediction artifact
	StagePredict Stage = "predict"
)

// StageArtefact records one persisted stage output.
type StageArtefact struct {
	ID          string `json:"id"`            // UUID
	RunID       string `json:"run_id"`        // UUID shared by all artefacts of one run
	Stage       Stage  `json:"stage"`         // producing stage
	Path        string `json:"path"`          // artifact location, empty for remote-only stages
	Rows        int    `json:"rows"`          // row count of the artifact
	Detail      string `json:"detail"`        // free text: model status, error detail, target query
	CreatedAtMs int64  `json:"created_at_ms"` // set by RecordArtefact when zero
}

// ModelRecord remembers a remote model by name across runs.
type ModelRecord struct {
	Name         string  `json:"name"`
	Status       string  `json:"status"`
	Dataset      string  `json:"dataset"`
	TargetColumn string  `json:"target_column"`
	ScalerMin    float64 `json:"scaler_min"`
	ScalerMax    float64 `json:"scaler_max"`
	Detail       string  `json:"detail,omitempty"`
	UpdatedAtMs  int64   `json:"updated_at_ms"`
}

// Validate checks the artefact's field values.
func (a *StageArtefact) Validate() error {
	if !isValidUUID(a.ID) {
		return fmt.Errorf("invalid artefact ID: not a valid UUID")
	}

	if !isValidUUID(a.RunID) {
		return fmt.Errorf("invalid run ID: not a valid UUID")
	}

	if err := a.Stage.Validate(); err != nil {
		return fmt.Errorf("invalid stage: %w", err)
	}

	if a.Rows < 0 {
		return fmt.Errorf("invalid rows: must be >= 0, got %d", a.Rows)
	}

	return nil
}

// Validate checks that the stage is a known enum value.
func (s Stage) Validate() error {
	switch s {
	case StageClean, StageFeatures, StageAssemble, StageTrain, StagePredict:
		return nil
	default:
		return fmt.Errorf("unknown stage: %q", s)
	}
}

// Validate checks the model record's field values.
func (m *ModelRecord) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("model name cannot be empty")
	}
	if m.Status == "" {
		return fmt.Errorf("model status cannot be empty")
	}
	return nil
}

func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
