package harness

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
)

// ContractNotFoundError is returned when a scenario references a contract
// file that doesn't exist.
type ContractNotFoundError struct {
	Contract     string
	Path         string
	ResolvedPath string
}

// Error implements the error interface.
func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf(
		"contract %q references file %q which does not exist (resolved to: %s)",
		e.Contract,
		e.Path,
		e.ResolvedPath,
	)
}

// FindScenarios returns the scenario files under dir, sorted by path. A
// single file is returned as is.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}
