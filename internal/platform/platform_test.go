package platform

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
}

func TestDefaultWorkDir(t *testing.T) {
	assert.Contains(t, DefaultWorkDir(), "inkd")
}

func TestInstallServiceFile(t *testing.T) {
	path, content := InstallServiceFile(ServiceConfig{
		Name: "inkd", Description: "inkd", ExecPath: "/usr/local/bin/inkd", WorkDir: "/var/lib/inkd",
	})
	switch runtime.GOOS {
	case "linux":
		assert.Equal(t, "/etc/systemd/system/inkd.service", path)
		assert.Contains(t, content, "ExecStart=/usr/local/bin/inkd")
	case "darwin":
		assert.Contains(t, path, "com.inkd.plist")
		assert.Contains(t, content, "<string>/usr/local/bin/inkd</string>")
	default:
		assert.Empty(t, path)
	}
}
