package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadURLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://a.example/1\n\n# a comment\nhttps://b.example/2  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/1", "https://b.example/2"}, urls)
}

func TestReadURLFileMissing(t *testing.T) {
	_, err := readURLFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestLoadGazetteer(t *testing.T) {
	words, err := loadGazetteer("")
	require.NoError(t, err)
	assert.Nil(t, words)

	path := filepath.Join(t.TempDir(), "gazetteer.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Mount Currie", "Sky Pilot"]`), 0o644))
	words, err = loadGazetteer(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mount Currie", "Sky Pilot"}, words)

	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = loadGazetteer(path)
	assert.Error(t, err)
}
