package config

import (
	"os"
	"path/filepath"
	"strings"
)

// baseDir is the working directory, falling back to the executable's directory.
func baseDir() string {
	if wd, err := os.Getwd(); err == nil && strings.TrimSpace(wd) != "" {
		return wd
	}
	if exe, err := os.Executable(); err == nil && strings.TrimSpace(exe) != "" {
		return filepath.Dir(exe)
	}
	return "."
}

// ResolveRuntimePath turns a configured directory into an absolute path.
// Empty values fall back to fallbackSubdir under the base directory.
func ResolveRuntimePath(raw string, fallbackSubdir string) string {
	target := strings.TrimSpace(raw)
	if target == "" {
		target = strings.TrimSpace(fallbackSubdir)
	}
	if target == "" {
		return baseDir()
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(baseDir(), target))
}
