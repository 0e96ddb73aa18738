package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const contentLogName = "content_log.txt"

// DefaultLogPaths lists the platform locations where the content log is
// usually found, most likely first.
func DefaultLogPaths() []string {
	home, _ := os.UserHomeDir()

	switch runtime.GOOS {
	case "windows":
		paths := []string{filepath.Join(`C:\Program Files (x86)`, "Steam", "logs", contentLogName)}
		if pf := os.Getenv("ProgramFiles(x86)"); pf != "" {
			paths = append([]string{filepath.Join(pf, "Steam", "logs", contentLogName)}, paths...)
		}
		return paths
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Steam", "logs", contentLogName)}
	default:
		return []string{
			filepath.Join(home, ".steam", "steam", "logs", contentLogName),
			filepath.Join(home, ".local", "share", "Steam", "logs", contentLogName),
			filepath.Join(home, ".var", "app", "com.valvesoftware.Steam", ".local", "share", "Steam", "logs", contentLogName),
		}
	}
}

// ResolveLogPath returns the configured override when set. Otherwise it
// returns the first default location that exists, or the first default
// when none do so the tailer can report it as unavailable.
func (c *Config) ResolveLogPath() string {
	if c.Log.Path != "" {
		return c.Log.Path
	}
	candidates := DefaultLogPaths()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}
