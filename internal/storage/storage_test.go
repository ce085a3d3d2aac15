package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgapi/internal/model"
)

func newStore(t *testing.T) *HistoryStore {
	t.Helper()
	s, err := NewHistoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(imageURL string, ts time.Time) *model.ResponseRecord {
	return &model.ResponseRecord{
		Timestamp:  ts,
		Endpoint:   "https://api.example.com/analyze",
		ImageURL:   imageURL,
		Method:     "POST",
		Params:     map[string]string{"correct": "true"},
		StatusCode: 200,
		Response:   json.RawMessage(`{"b":2,"a":1}`),
		DurationMs: 12,
	}
}

func TestHistoryStore_RecordAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ts := time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local)

	key, err := s.RecordSuccess(ctx, record("https://img.example.com/cat.jpg", ts))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "https://img.example.com/cat.jpg_"))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	assert.True(t, ts.Equal(got.Timestamp))
	assert.Equal(t, "POST", got.Method)
	assert.Equal(t, map[string]string{"correct": "true"}, got.Params)
	assert.Equal(t, `{"b":2,"a":1}`, string(got.Response), "raw body keeps key order")
	assert.Equal(t, int64(12), got.DurationMs)
}

func TestHistoryStore_SameImageDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ts := time.Now().Truncate(time.Second)

	k1, err := s.RecordSuccess(ctx, record("https://x/b.jpg", ts))
	require.NoError(t, err)
	k2, err := s.RecordSuccess(ctx, record("https://x/b.jpg", ts))
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHistoryStore_ListRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)

	var keys []string
	for i, u := range []string{"https://x/1.jpg", "https://x/2.jpg", "https://x/3.jpg"} {
		k, err := s.RecordSuccess(ctx, record(u, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		keys = append(keys, k)
	}

	items, err := s.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, keys[2], items[0].Key)
	assert.Equal(t, keys[1], items[1].Key)
	assert.Equal(t, keys[0], items[2].Key)
	assert.Equal(t, "2024-03-01 10:02:00 - https://x/3.jpg...", items[0].Label)
}

func TestHistoryStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	k1, err := s.RecordSuccess(ctx, record("https://x/1.jpg", time.Now()))
	require.NoError(t, err)
	k2, err := s.RecordSuccess(ctx, record("https://x/2.jpg", time.Now()))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, k1))

	items, err := s.ListRecent(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, k2, items[0].Key)

	_, err = s.Get(ctx, k1)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, k1), model.ErrNotFound)
}

func TestHistoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.RecordSuccess(ctx, record("https://x/1.jpg", time.Now()))
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	items, err := s.ListRecent(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHistoryStore_IsolatedPerSession(t *testing.T) {
	ctx := context.Background()
	a := newStore(t)
	b := newStore(t)

	_, err := a.RecordSuccess(ctx, record("https://x/1.jpg", time.Now()))
	require.NoError(t, err)

	n, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLabel(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	key := "https://very-long-host.example.com/path/img.jpg_1234"

	assert.Equal(t, "2024-01-02 03:04:05 - https://very-long-ho...", Label(ts, key))
}

func TestLabel_CountsRunes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	label := Label(ts, "https://x.com/aéééééééé_abc")
	assert.True(t, utf8.ValidString(label))
	assert.Equal(t, "2024-01-02 03:04:05 - https://x.com/aééééé...", label)
}

func TestWriteExport(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)
	data := []byte("{\n  \"a\": 1\n}")

	path, err := WriteExport(dir, at, data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "api_response_20240506_070809.json"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = WriteExport(dir, at, data)
	assert.Error(t, err, "same-second export must not overwrite")
}
