package fsutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFilesByExtension(t *testing.T) {
	fs := afero.NewMemMapFs()
	for _, p := range []string{"rules/b.hcl", "rules/a.yaml", "rules/sub/c.yml", "rules/notes.md", "single.hcl", "readme.txt"} {
		require.NoError(t, afero.WriteFile(fs, p, nil, 0o644))
	}

	files, err := FindFilesByExtension(fs, "rules", ".hcl", ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, []string{"rules/a.yaml", "rules/b.hcl", "rules/sub/c.yml"}, files)

	files, err = FindFilesByExtension(fs, "single.hcl", ".hcl")
	require.NoError(t, err)
	assert.Equal(t, []string{"single.hcl"}, files)

	_, err = FindFilesByExtension(fs, "readme.txt", ".hcl")
	assert.ErrorContains(t, err, "unsupported file type")

	_, err = FindFilesByExtension(fs, "absent", ".hcl")
	assert.ErrorContains(t, err, "path not found")

	assert.Panics(t, func() { _, _ = FindFilesByExtension(fs, "rules") })
}
