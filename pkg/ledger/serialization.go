package ledger

import (
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes.
// Redis hashes are flat string maps; numeric fields are parsed back explicitly.

// ArtefactToHash converts a StageArtefact to Redis hash format.
func ArtefactToHash(a *StageArtefact) map[string]interface{} {
	return map[string]interface{}{
		"id":            a.ID,
		"run_id":        a.RunID,
		"stage":         string(a.Stage),
		"path":          a.Path,
		"rows":          a.Rows,
		"detail":        a.Detail,
		"created_at_ms": a.CreatedAtMs,
	}
}

// HashToArtefact converts a Redis hash to a StageArtefact.
func HashToArtefact(hash map[string]string) (*StageArtefact, error) {
	rows, err := strconv.Atoi(hash["rows"])
	if err != nil {
		return nil, fmt.Errorf("invalid rows field: %w", err)
	}

	createdAtMs, err := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at_ms field: %w", err)
	}

	return &StageArtefact{
		ID:          hash["id"],
		RunID:       hash["run_id"],
		Stage:       Stage(hash["stage"]),
		Path:        hash["path"],
		Rows:        rows,
		Detail:      hash["detail"],
		CreatedAtMs: createdAtMs,
	}, nil
}

// ModelToHash converts a ModelRecord to Redis hash format.
// Floats are formatted with full precision so the scaler round-trips exactly.
func ModelToHash(m *ModelRecord) map[string]interface{} {
	return map[string]interface{}{
		"name":          m.Name,
		"status":        m.Status,
		"dataset":       m.Dataset,
		"target_column": m.TargetColumn,
		"scaler_min":    strconv.FormatFloat(m.ScalerMin, 'g', -1, 64),
		"scaler_max":    strconv.FormatFloat(m.ScalerMax, 'g', -1, 64),
		"detail":        m.Detail,
		"updated_at_ms": m.UpdatedAtMs,
	}
}

// HashToModel converts a Redis hash to a ModelRecord.
func HashToModel(hash map[string]string) (*ModelRecord, error) {
	scalerMin, err := parseFloatField(hash, "scaler_min")
	if err != nil {
		return nil, err
	}
	scalerMax, err := parseFloatField(hash, "scaler_max")
	if err != nil {
		return nil, err
	}

	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	return &ModelRecord{
		Name:         hash["name"],
		Status:       hash["status"],
		Dataset:      hash["dataset"],
		TargetColumn: hash["target_column"],
		ScalerMin:    scalerMin,
		ScalerMax:    scalerMax,
		Detail:       hash["detail"],
		UpdatedAtMs:  updatedAtMs,
	}, nil
}

func parseFloatField(hash map[string]string, field string) (float64, error) {
	raw := hash[field]
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}
