package parser_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// loadArchive reads testdata/<name>.txtar and returns its files by name.
func loadArchive(t *testing.T, name string) map[string][]byte {
	t.Helper()

	archive, err := txtar.ParseFile(filepath.Join("testdata", name+".txtar"))
	require.NoError(t, err)

	files := make(map[string][]byte, len(archive.Files))
	for _, f := range archive.Files {
		files[f.Name] = f.Data
	}
	return files
}
