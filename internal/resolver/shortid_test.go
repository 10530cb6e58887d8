package resolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/assay/pkg/ledger"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLedger(t *testing.T, ids ...string) *ledger.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	lc, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { lc.Close() })

	runID := uuid.New().String()
	for _, id := range ids {
		require.NoError(t, lc.RecordArtefact(context.Background(), &ledger.StageArtefact{
			ID: id, RunID: runID, Stage: ledger.StageClean, Rows: 1,
		}))
	}
	return lc
}

func TestResolveArtefactID(t *testing.T) {
	ctx := context.Background()
	first := "abc12345-1111-4111-8111-111111111111"
	second := "abc12399-2222-4222-8222-222222222222"
	lc := setupLedger(t, first, second)

	t.Run("full UUID that exists", func(t *testing.T) {
		id, err := ResolveArtefactID(ctx, lc, first)
		require.NoError(t, err)
		assert.Equal(t, first, id)
	})

	t.Run("full UUID that does not exist", func(t *testing.T) {
		_, err := ResolveArtefactID(ctx, lc, uuid.New().String())
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveArtefactID(ctx, lc, "ABC1234")
		require.NoError(t, err)
		assert.Equal(t, first, id)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := ResolveArtefactID(ctx, lc, "abc123")
		require.True(t, IsAmbiguousError(err))
		assert.Equal(t, []string{first, second}, err.(*AmbiguousError).Matches)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveArtefactID(ctx, lc, "ffffff")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := ResolveArtefactID(ctx, lc, "abc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("glob characters rejected", func(t *testing.T) {
		_, err := ResolveArtefactID(ctx, lc, "abc12*")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-hexadecimal")
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = fmt.Sprintf("abc123%02d-0000-4000-8000-000000000000", i)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abc123", Matches: matches})
	assert.True(t, strings.HasPrefix(msg, "ambiguous short ID 'abc123' matches 12 artefacts:\n"))
	assert.Contains(t, msg, matches[9])
	assert.NotContains(t, msg, matches[10])
	assert.Contains(t, msg, "...and 2 more")
}
