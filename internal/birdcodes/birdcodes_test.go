package birdcodes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultList(t *testing.T) {
	t.Parallel()

	c := Default()
	assert.Equal(t, 262, c.Len())

	// Labels follow list order.
	id, ok := c.ID("aldfly")
	require.True(t, ok)
	assert.Equal(t, 0, id)

	name, ok := c.Name(0)
	require.True(t, ok)
	assert.Equal(t, "aldfly", name)

	_, ok = c.ID("not-a-bird")
	assert.False(t, ok)
	_, ok = c.Name(c.Len())
	assert.False(t, ok)
}

func TestDefaultIDsAreDense(t *testing.T) {
	t.Parallel()

	c := Default()
	for i, name := range c.Names() {
		id, ok := c.ID(name)
		require.True(t, ok, "code %q", name)
		assert.Equal(t, i, id, "code %q", name)
	}
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("# custom list\nsonspa\n\nwesmea\n"), 0o644))

	c, err := FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	id, ok := c.ID("wesmea")
	require.True(t, ok)
	assert.Equal(t, 1, id)
}

func TestFromFileRejectsDuplicates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("sonspa\nsonspa\n"), 0o644))

	_, err := FromFile(path)
	require.Error(t, err)
}

func TestFromFileRejectsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("# nothing here\n"), 0o644))

	_, err := FromFile(path)
	require.Error(t, err)
}
