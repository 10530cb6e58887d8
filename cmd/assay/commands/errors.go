package commands

import (
	"errors"

	"github.com/dyluth/assay/internal/printer"
	"github.com/dyluth/assay/pkg/bioactivity"
)

// stageError prints a pipeline failure with a title and suggestions chosen
// by its error kind.
func stageError(err error) error {
	switch {
	case errors.Is(err, bioactivity.ErrTimeoutIncomplete):
		return printer.Error("training still in progress", err.Error(), []string{
			"Check again later:\n  assay predict",
			"Raise training.max_polls or training.poll_interval in assay.yml",
		})

	case errors.Is(err, bioactivity.ErrModelNotReady), errors.Is(err, bioactivity.ErrModelNotFound):
		return printer.Error("model not ready", err.Error(), []string{
			"Train it first:\n  assay train",
		})

	case errors.Is(err, bioactivity.ErrRemoteService):
		return printer.Error("training service error", err.Error(), []string{
			"Check the service logs for the model",
			"Drop and resubmit a failed model by setting training.retrain_failed: true",
		})

	case errors.Is(err, bioactivity.ErrExternalTool):
		return printer.Error("fingerprint generator failed", err.Error(), []string{
			"Check fingerprint.command (exec mode) or fingerprint.image (docker mode) in assay.yml",
		})

	case errors.Is(err, bioactivity.ErrRowCountMismatch), errors.Is(err, bioactivity.ErrDataAlignment):
		return printer.Error("descriptor rows do not match the dataset", err.Error(), []string{
			"Delete descriptors_output.csv and rerun:\n  assay run",
		})

	case errors.Is(err, bioactivity.ErrInsufficientData), errors.Is(err, bioactivity.ErrDataQuality):
		return printer.Error("not enough usable data", err.Error(), []string{
			"Try another target:\n  set target.query or target.index in assay.yml",
		})

	case errors.Is(err, bioactivity.ErrConfiguration):
		return printer.Error("configuration error", err.Error(), []string{
			"Keep exactly one descriptor specification (*.xml) in the work directory, or set fingerprint.descriptor_spec",
		})

	default:
		return printer.Error("pipeline failed", err.Error(), nil)
	}
}
