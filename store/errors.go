package store

import "fmt"

// ErrInvalidDir returns an error for an unusable directory path
func ErrInvalidDir(dir string) error {
	return fmt.Errorf("store: invalid directory %q (must be non-empty)", dir)
}

// ErrOpenDir wraps a directory creation failure
func ErrOpenDir(dir string, err error) error {
	return fmt.Errorf("store: failed to open directory %q: %w", dir, err)
}

// ErrInvalidPath returns an error for an unusable database path
func ErrInvalidPath(path string) error {
	return fmt.Errorf("store: invalid database path %q (must be non-empty)", path)
}

// ErrOpenDatabase wraps a database open failure
func ErrOpenDatabase(path string, err error) error {
	return fmt.Errorf("store: failed to open database %q: %w", path, err)
}
