// Package utils provides shared utility functions used across multiple packages.
package utils

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// WindowsExecutableExtensions returns a map of lowercase Windows executable
// extensions (with leading dot) to true, parsed from the PATHEXT environment
// variable. Returns a default set if PATHEXT is unset.
func WindowsExecutableExtensions() map[string]bool {
	exts := map[string]bool{}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = ".COM;.EXE;.BAT;.CMD"
	}
	for _, ext := range strings.Split(pathext, ";") {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}
	return exts
}

// IsWindowsExecutable returns true if the given file path has a Windows
// executable extension according to the PATHEXT environment variable.
func IsWindowsExecutable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	return WindowsExecutableExtensions()[ext]
}

// ResolveExecutable finds binary as a path or on PATH and checks that it can
// be executed. It returns the resolved path.
func ResolveExecutable(binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("no binary configured")
	}
	path := binary
	info, err := os.Stat(path)
	if err != nil {
		resolved, lookErr := exec.LookPath(binary)
		if lookErr != nil {
			return "", fmt.Errorf("not found: %w", lookErr)
		}
		path = resolved
		if info, err = os.Stat(path); err != nil {
			return "", err
		}
	}
	if info.IsDir() {
		return path, fmt.Errorf("%s is a directory", path)
	}
	if !isExecutable(path, info) {
		return path, fmt.Errorf("%s is not executable", path)
	}
	return path, nil
}

func isExecutable(path string, info os.FileInfo) bool {
	if runtime.GOOS == "windows" {
		return IsWindowsExecutable(path)
	}
	return info.Mode().Perm()&0o111 != 0
}
