package filex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir expands a leading ~, cleans dir and creates it with parents.
// It returns the path that was created.
func EnsureDir(dir string) (string, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("home dir: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	dir = filepath.Clean(dir)

	if err := os.MkdirAll(dir, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	return dir, nil
}
