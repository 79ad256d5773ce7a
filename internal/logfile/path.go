package logfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathResolver maps a log file name to a full path on this platform.
type PathResolver interface {
	Resolve(name string) (string, error)
}

// DirResolver places files inside a fixed directory.
type DirResolver string

func (d DirResolver) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	return filepath.Join(string(d), name), nil
}

// ExecutableDirResolver places files next to the running executable.
type ExecutableDirResolver struct{}

func (ExecutableDirResolver) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locating executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), name), nil
}

// ResolverFor returns a DirResolver for dir, or an ExecutableDirResolver when dir is empty.
func ResolverFor(dir string) PathResolver {
	if dir == "" {
		return ExecutableDirResolver{}
	}
	return DirResolver(dir)
}
