package store

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func TestCanonicalHashDeterministic(t *testing.T) {
	a := map[string]any{"b": 1, "a": "x", "c": []any{1, 2, 3}}
	b := map[string]any{"c": []any{1, 2, 3}, "a": "x", "b": 1}

	h1, err := CanonicalHash(a)
	require.NoError(t, err)
	h2, err := CanonicalHash(b)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "key order must not affect the hash")
}

func TestCanonicalHashDiffersOnValue(t *testing.T) {
	h1, err := CanonicalHash(map[string]any{"a": 1})
	require.NoError(t, err)
	h2, err := CanonicalHash(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestDocumentStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDocumentStore(dir)
	require.NoError(t, err)

	type record struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	in := record{ID: "r1", Name: "first"}
	require.NoError(t, ds.Put("r1", in))

	var out record
	require.NoError(t, ds.Get("r1", &out))
	assert.Equal(t, in, out)

	ids, err := ds.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)

	require.NoError(t, ds.Delete("r1"))
	_, err = ds.List()
	require.NoError(t, err)
}

func TestDocumentStorePutIsAtomic(t *testing.T) {
	dir := t.TempDir()
	ds, err := NewDocumentStore(dir)
	require.NoError(t, err)

	require.NoError(t, ds.Put("r1", map[string]string{"v": "1"}))
	require.NoError(t, ds.Put("r1", map[string]string{"v": "2"}))

	var out map[string]string
	require.NoError(t, ds.Get("r1", &out))
	assert.Equal(t, "2", out["v"])

	// no stray .tmp files left behind
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestJSONLWriterAppendsLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl")

	w, err := NewJSONLWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(map[string]any{"n": 1}))
	require.NoError(t, w.Append(map[string]any{"n": 2}))

	data, err := readLines(path)
	require.NoError(t, err)
	assert.Len(t, data, 2)
}
