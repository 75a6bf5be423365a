// Package fileutil holds filesystem helpers shared by the store and cover downloads.
package fileutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileExists checks if a regular file exists at the given path
func FileExists(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// WriteFileAtomic writes data to a temporary file in the target directory and
// renames it over filePath, so readers never observe a partial file.
// Parent directories are created as needed.
func WriteFileAtomic(filePath string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		return errors.Join(fmt.Errorf("failed to write temp file: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err := tmp.Chmod(perm); err != nil {
		return errors.Join(fmt.Errorf("failed to chmod temp file: %w", err), tmp.Close(), os.Remove(tmpName))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpName))
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		return errors.Join(fmt.Errorf("failed to rename temp file: %w", err), os.Remove(tmpName))
	}
	return nil
}

// WriteJSONFile marshals data with indentation and writes it atomically.
func WriteJSONFile(data any, filePath string) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return WriteFileAtomic(filePath, jsonData, 0644)
}

// ReadJSONFile decodes filePath into out. A missing file is not an error and
// leaves out untouched; found reports whether the file existed.
func ReadJSONFile(filePath string, out any) (found bool, err error) {
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read JSON file: %w", err)
	}
	if len(data) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return true, fmt.Errorf("failed to parse JSON file %s: %w", filePath, err)
	}
	return true, nil
}
