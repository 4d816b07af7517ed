package jsonfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	require.NoError(t, Write(path, map[string]int{"a": 1}))
	require.NoError(t, Write(path, map[string]int{"b": 2}))

	var got map[string]int
	require.NoError(t, Read(path, &got))
	assert.Equal(t, map[string]int{"b": 2}, got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestReadMissing(t *testing.T) {
	var v any
	err := Read(filepath.Join(t.TempDir(), "nope.json"), &v)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	var v any
	err := Read(path, &v)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
