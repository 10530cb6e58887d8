// Package resolver expands short artefact ID prefixes to full UUIDs.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/assay/pkg/ledger"
	"github.com/google/uuid"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
const MinShortIDLength = 6

// ResolveArtefactID resolves a short ID prefix to a full UUID.
// A full UUID is checked for existence; a prefix must match exactly one artefact.
func ResolveArtefactID(ctx context.Context, lc *ledger.Client, shortID string) (string, error) {
	shortID = strings.ToLower(strings.TrimSpace(shortID))

	if _, err := uuid.Parse(shortID); err == nil && len(shortID) == 36 {
		if _, err := lc.GetArtefact(ctx, shortID); err != nil {
			if ledger.IsNotFound(err) {
				return "", &NotFoundError{ShortID: shortID}
			}
			return "", fmt.Errorf("failed to verify artefact existence: %w", err)
		}
		return shortID, nil
	}

	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	// Keep SCAN glob characters out of the pattern.
	for _, r := range shortID {
		if !strings.ContainsRune("0123456789abcdef-", r) {
			return "", fmt.Errorf("short ID %q contains non-hexadecimal characters", shortID)
		}
	}

	matches, err := lc.ScanArtefacts(ctx, shortID)
	if err != nil {
		return "", fmt.Errorf("failed to search for artefact: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

// NotFoundError indicates no artefacts matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no artefacts found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple artefacts matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d artefacts", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError lists up to 10 matching UUIDs, then "...and N more".
func FormatAmbiguousError(err *AmbiguousError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ambiguous short ID '%s' matches %d artefacts:\n", err.ShortID, len(err.Matches))

	displayCount := min(len(err.Matches), 10)
	for _, id := range err.Matches[:displayCount] {
		fmt.Fprintf(&b, "  %s\n", id)
	}
	if len(err.Matches) > 10 {
		fmt.Fprintf(&b, "  ...and %d more\n", len(err.Matches)-10)
	}

	b.WriteString("\nUse a longer prefix to uniquely identify the artefact.")
	return b.String()
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
