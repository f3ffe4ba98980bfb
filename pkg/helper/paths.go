package helper

import (
	"os"
	"path/filepath"
)

const (
	// SystemConfigDir is searched last for configuration files.
	SystemConfigDir = "/etc/grimrelay"
	// DefaultPIDPath is used when no pid file location resolves.
	DefaultPIDPath = "/var/run/grimrelay.pid"
)

// GetCfgPath returns the path to the configuration file.
//
// Priority:
// 1. If filename is an absolute path, return it directly.
// 2. Check ./{filename} and ./configs/{filename}
// 3. Otherwise, fallback to /etc/grimrelay/{filename}
func GetCfgPath(filename string) string {
	if filename == "" {
		panic("filename cannot be empty")
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	cwd, err := os.Getwd()
	if err == nil && cwd != "" {
		for _, candidate := range []string{
			filepath.Join(cwd, filename),
			filepath.Join(cwd, "configs", filename),
		} {
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return filepath.Join(SystemConfigDir, filename)
}

// GetPIDPath resolves a relative pid file against the working directory
// when its parent directory exists, falling back to DefaultPIDPath.
func GetPIDPath(filename string) string {
	if filename == "" {
		return DefaultPIDPath
	}
	if filepath.IsAbs(filename) {
		return filename
	}

	abs, err := filepath.Abs(filename)
	if err != nil {
		return DefaultPIDPath
	}
	if _, err := os.Stat(filepath.Dir(abs)); err != nil {
		return DefaultPIDPath
	}
	return abs
}
