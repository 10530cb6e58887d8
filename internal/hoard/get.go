package hoard

import (
	"context"
	"fmt"
	"io"

	"github.com/dyluth/assay/pkg/ledger"
	"github.com/google/uuid"
)

// GetArtefact writes a single artefact as indented JSON.
// A well-formed but unknown ID yields an *ArtefactNotFoundError.
func GetArtefact(ctx context.Context, lc *ledger.Client, artefactID string, w io.Writer) error {
	if _, err := uuid.Parse(artefactID); err != nil {
		return fmt.Errorf("invalid artefact ID format: must be a valid UUID")
	}

	artefact, err := lc.GetArtefact(ctx, artefactID)
	if err != nil {
		if ledger.IsNotFound(err) {
			return &ArtefactNotFoundError{ArtefactID: artefactID}
		}
		return fmt.Errorf("failed to fetch artefact: %w", err)
	}

	if err := FormatSingleJSON(w, artefact); err != nil {
		return fmt.Errorf("failed to format artefact: %w", err)
	}

	return nil
}

// ArtefactNotFoundError reports an artefact ID absent from the ledger.
type ArtefactNotFoundError struct {
	ArtefactID string
}

func (e *ArtefactNotFoundError) Error() string {
	return fmt.Sprintf("artefact with ID '%s' not found", e.ArtefactID)
}

// IsNotFound returns true if the error is an ArtefactNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*ArtefactNotFoundError)
	return ok
}
