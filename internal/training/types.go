// Package training drives the remote model-training service: it submits or
// reuses a named model, polls it to a terminal state under a fixed budget,
// and classifies the result as an Outcome.
package training

import (
	"context"
	"io"
	"strings"
)

// Status is the lifecycle state of a remote model.
// Absent and Submitted are local states; the rest are reported by the service.
type Status string

const (
	StatusAbsent     Status = "absent"
	StatusSubmitted  Status = "submitted"
	StatusGenerating Status = "generating"
	StatusTraining   Status = "training"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// ParseStatus normalizes a status string reported by the service.
func ParseStatus(s string) Status {
	return Status(strings.ToLower(strings.TrimSpace(s)))
}

// IsInProgress reports whether the model is still being built.
func (s Status) IsInProgress() bool {
	return s == StatusSubmitted || s == StatusGenerating || s == StatusTraining
}

// IsTerminal reports whether polling should stop.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Model is the service's view of a named model.
type Model struct {
	Name         string `json:"name"`
	Status       Status `json:"status"`
	TargetColumn string `json:"predict,omitempty"`
	Error        string `json:"error,omitempty"`
	Dataset      string `json:"training_data,omitempty"`
}

// DatasetRef names a dataset already uploaded to the service.
type DatasetRef struct {
	Name string `json:"name"`
}

// CreateRequest asks the service to train a model predicting TargetColumn from Dataset.
type CreateRequest struct {
	Name         string
	TargetColumn string
	Dataset      DatasetRef
}

// Service is the remote training and prediction service.
// Implementations wrap transport failures in bioactivity.ErrRemoteService and
// report unknown model names as bioactivity.ErrModelNotFound.
type Service interface {
	ListModels(ctx context.Context) ([]Model, error)
	GetModel(ctx context.Context, name string) (Model, error)
	CreateModel(ctx context.Context, req CreateRequest) (Model, error)
	DropModel(ctx context.Context, name string) error
	UploadDataset(ctx context.Context, name string, data io.Reader) (DatasetRef, error)
	// Predict returns one target value per input row, in input order.
	Predict(ctx context.Context, name, targetColumn string, rows []map[string]float64) ([]float64, error)
}
