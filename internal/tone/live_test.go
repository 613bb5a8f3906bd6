package tone

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePreset = `
fallback: plain
presets:
  - id: plain
    system: Rewrite plainly.
    user: "{{text}}"
`

func TestLive_LoadFile(t *testing.T) {
	l := NewLive(Default())
	path := filepath.Join(t.TempDir(), "presets.yaml")

	require.NoError(t, os.WriteFile(path, []byte("presets: [}"), 0o600))
	assert.Error(t, l.LoadFile(path))
	assert.Equal(t, CasualSlangy, l.Fallback().ID, "bad file keeps the old catalog")

	require.NoError(t, os.WriteFile(path, []byte(onePreset), 0o600))
	require.NoError(t, l.LoadFile(path))
	assert.Equal(t, []string{"plain"}, l.IDs())
	assert.Equal(t, "plain", l.Resolve(Formal).ID)
}

func TestLive_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	require.NoError(t, os.WriteFile(path, builtin, 0o600))

	l := NewLive(Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx, path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte(onePreset), 0o600))
	require.NoError(t, os.WriteFile(path, []byte(onePreset), 0o600))

	assert.Eventually(t, func() bool {
		return l.Fallback().ID == "plain"
	}, 2*time.Second, 10*time.Millisecond)
}
