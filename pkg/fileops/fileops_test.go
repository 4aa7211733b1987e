package fileops

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCopyFile(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "src/blackberry/client.js", "client")

	err := CopyFile(src, "src/blackberry/client.js", dst, "ext-qnx/org.acme.echo/client.js")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dst, "ext-qnx/org.acme.echo/client.js"))
	require.NoError(t, err)
	assert.Equal(t, "client", string(data))
}

func TestCopyFileSourceNotFound(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	err := CopyFile(src, "missing.js", dst, "out/missing.js")
	require.ErrorIs(t, err, ErrSourceNotFound)

	var pathErr *fs.PathError
	require.True(t, errors.As(err, &pathErr))
	assert.Equal(t, filepath.Join(src, "missing.js"), pathErr.Path)

	_, statErr := os.Stat(filepath.Join(dst, "out"))
	assert.True(t, os.IsNotExist(statErr), "nothing may be created for a missing source")
}

func TestCopyFileTargetAlreadyExists(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.js", "new")
	writeFile(t, dst, "lib/a.js", "old")

	err := CopyFile(src, "a.js", dst, "lib/a.js")
	require.ErrorIs(t, err, ErrTargetAlreadyExists)
	assert.Contains(t, err.Error(), filepath.Join(dst, "lib/a.js"))

	data, err := os.ReadFile(filepath.Join(dst, "lib/a.js"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data), "existing target must not be overwritten")
}

func TestCopyTree(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "www/echo/echo.js", "js")
	writeFile(t, src, "www/echo/img/logo.png", "png")

	require.NoError(t, CopyTree(src, "www/echo", dst, "www/echo"))

	for rel, want := range map[string]string{
		"www/echo/echo.js":      "js",
		"www/echo/img/logo.png": "png",
	} {
		data, err := os.ReadFile(filepath.Join(dst, rel))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}

	err := CopyTree(src, "www/echo", dst, "www/echo")
	assert.ErrorIs(t, err, ErrTargetAlreadyExists)
}

func TestDeleteAndPrune(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		remove    string
		boundary  string
		gone      []string
		remaining []string
	}{
		{
			name:      "prunes up to boundary",
			files:     []string{"src/com/acme/echo/Echo.java"},
			remove:    "src/com/acme/echo/Echo.java",
			boundary:  "src",
			gone:      []string{"src/com"},
			remaining: []string{"src"},
		},
		{
			name:      "keeps shared package",
			files:     []string{"src/com/acme/echo/Echo.java", "src/com/acme/other/Other.java"},
			remove:    "src/com/acme/echo/Echo.java",
			boundary:  "src",
			gone:      []string{"src/com/acme/echo"},
			remaining: []string{"src/com/acme/other/Other.java"},
		},
		{
			name:      "stops at non-empty sibling",
			files:     []string{"ext-qnx/acme.echo/index.js", "ext-qnx/acme.echo/client.js"},
			remove:    "ext-qnx/acme.echo/index.js",
			boundary:  "ext-qnx",
			gone:      []string{"ext-qnx/acme.echo/index.js"},
			remaining: []string{"ext-qnx/acme.echo/client.js"},
		},
		{
			name:      "missing file tolerated",
			files:     []string{"ext/acme.echo/keep.txt"},
			remove:    "ext/acme.echo/gone.js",
			boundary:  "ext",
			remaining: []string{"ext/acme.echo/keep.txt"},
		},
		{
			name:      "never removes root",
			files:     []string{"only.txt"},
			remove:    "only.txt",
			boundary:  "",
			gone:      []string{"only.txt"},
			remaining: []string{"."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for _, f := range tt.files {
				writeFile(t, root, f, "x")
			}

			require.NoError(t, DeleteAndPrune(root, tt.remove, tt.boundary))

			for _, rel := range tt.gone {
				_, err := os.Stat(filepath.Join(root, rel))
				assert.True(t, os.IsNotExist(err), "%s should be gone", rel)
			}
			for _, rel := range tt.remaining {
				_, err := os.Stat(filepath.Join(root, rel))
				assert.NoError(t, err, "%s should remain", rel)
			}
		})
	}
}

func TestDeleteAndPruneSkipsMissingAncestors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ext"), 0o755))

	// Neither the file nor its package directory exist; the empty boundary stays.
	require.NoError(t, DeleteAndPrune(root, "ext/acme.echo/client.js", "ext"))

	_, err := os.Stat(filepath.Join(root, "ext"))
	assert.NoError(t, err)
}

func TestRemoveAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "www/plugins/org.acme.echo/www/echo.js", "js")

	require.NoError(t, RemoveAll(root, "www/plugins/org.acme.echo"))
	ok, err := Exists(root, "www/plugins/org.acme.echo")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Exists(root, "www/plugins")
	require.NoError(t, err)
	assert.True(t, ok, "RemoveAll must not prune parents")

	assert.NoError(t, RemoveAll(root, "www/never-there"))
}
