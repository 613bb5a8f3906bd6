// Package platform provides OS-aware helpers for data paths and service files.
// All code that needs to behave differently per OS must use this package.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultWorkDir returns the OS-appropriate data directory for inkd.
//
//	Linux:   ~/.local/share/inkd
//	macOS:   ~/Library/Application Support/inkd
//	Windows: %APPDATA%\inkd
func DefaultWorkDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "inkd")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "inkd")
	default:
		return filepath.Join(home, ".local", "share", "inkd")
	}
}

// EnsureDir creates a directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// ServiceConfig describes the daemon for a generated service definition.
type ServiceConfig struct {
	Name        string
	Description string
	ExecPath    string
	WorkDir     string
}

// InstallServiceFile generates the service definition file for the current OS.
// Returns an empty path on Windows, where services are registered via sc.exe.
func InstallServiceFile(cfg ServiceConfig) (path string, content string) {
	switch runtime.GOOS {
	case "linux":
		path = filepath.Join("/etc", "systemd", "system", cfg.Name+".service")
		content = systemdUnit(cfg)
	case "darwin":
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, "Library", "LaunchAgents", "com."+cfg.Name+".plist")
		content = launchdPlist(cfg)
	}
	return
}

func systemdUnit(cfg ServiceConfig) string {
	return `[Unit]
Description=` + cfg.Description + `
After=network.target

[Service]
Type=simple
ExecStart=` + cfg.ExecPath + `
WorkingDirectory=` + cfg.WorkDir + `
Restart=always
RestartSec=5

[Install]
WantedBy=multi-user.target
`
}

func launchdPlist(cfg ServiceConfig) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>com.` + cfg.Name + `</string>
    <key>ProgramArguments</key>
    <array>
        <string>` + cfg.ExecPath + `</string>
    </array>
    <key>WorkingDirectory</key>
    <string>` + cfg.WorkDir + `</string>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
</dict>
</plist>
`
}
