// Package filter selects ledger artefacts for hoard listings and watch streams.
package filter

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dyluth/assay/pkg/ledger"
)

// Criteria defines filtering criteria for artefacts.
// All filters are ANDed together - an artefact must match ALL criteria to pass.
type Criteria struct {
	SinceTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	UntilTimestampMs int64  // Unix timestamp in milliseconds, 0 = no filter
	StageGlob        string // Glob pattern for the stage name, empty = no filter
	RunID            string // Run ID or a prefix of one, empty = no filter
}

// Validate rejects a malformed stage pattern.
func (c *Criteria) Validate() error {
	if c.StageGlob == "" {
		return nil
	}
	if _, err := filepath.Match(c.StageGlob, ""); err != nil {
		return fmt.Errorf("invalid stage pattern %q: %w", c.StageGlob, err)
	}
	return nil
}

// Matches returns true if the artefact matches all filter criteria.
// Empty/zero criteria values are treated as "match all" for that criterion.
func (c *Criteria) Matches(a *ledger.StageArtefact) bool {
	if c.SinceTimestampMs > 0 && a.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && a.CreatedAtMs > c.UntilTimestampMs {
		return false
	}

	if c.StageGlob != "" {
		matched, err := filepath.Match(c.StageGlob, string(a.Stage))
		if err != nil || !matched {
			return false
		}
	}

	if c.RunID != "" && !strings.HasPrefix(a.RunID, c.RunID) {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		c.StageGlob != "" ||
		c.RunID != ""
}
