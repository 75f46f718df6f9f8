package util

import (
	"fmt"
	"os"
)

// WriteFileAtomic writes data to path by writing a temporary file in the
// same directory and renaming it into place, so a crash mid-write never
// leaves a partially written artifact at path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}

	return nil
}
