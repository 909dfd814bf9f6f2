package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "artifacts.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := map[string]any{
		"source_url":                  "https://example.com/a",
		"extracted_at":                "2025-10-01T12:00:00-07:00",
		"mountain_name":               "Mount Example",
		"num_fatalities":              1,
		"extraction_confidence_score": 0.8,
		"event_id":                    "abc123def456",
	}
	require.NoError(t, s.Upsert(ctx, doc))

	rows, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	a := rows[0]
	assert.Equal(t, "https://example.com/a", a.SourceURL)
	assert.Equal(t, "example.com", a.Domain)
	assert.Equal(t, "Mount Example", a.Mountain)
	require.True(t, a.Fatalities.Valid)
	assert.Equal(t, int64(1), a.Fatalities.Int64)
	require.True(t, a.Confidence.Valid)
	assert.InDelta(t, 0.8, a.Confidence.Float64, 1e-9)
	assert.Equal(t, "Mount Example", a.Doc["mountain_name"])
}

func TestUpsertReplacesBySourceURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, map[string]any{"source_url": "https://example.com/a", "mountain_name": "Old"}))
	require.NoError(t, s.Upsert(ctx, map[string]any{"source_url": "https://example.com/a", "mountain_name": "New"}))

	rows, err := s.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "New", rows[0].Mountain)
}

func TestUpsertMissingSourceURL(t *testing.T) {
	s := newTestStore(t)
	err := s.Upsert(context.Background(), map[string]any{"mountain_name": "X"})
	assert.Error(t, err)
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, map[string]any{"source_url": "https://a.com/1", "mountain_name": "Baker"}))
	require.NoError(t, s.Upsert(ctx, map[string]any{"source_url": "https://b.com/2", "mountain_name": "Rainier"}))

	rows, err := s.Query(ctx, map[string]any{"mountain_name": "Baker"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "https://a.com/1", rows[0].SourceURL)

	rows, err = s.Query(ctx, map[string]any{"domain": "b.com", "mountain_name": "Rainier"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = s.Query(ctx, map[string]any{"artifact_json": "x"})
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.StartRun(ctx, "batch", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, s.FinishRun(ctx, id, "completed"))

	assert.Error(t, s.FinishRun(ctx, "no-such-run", "completed"))
}
