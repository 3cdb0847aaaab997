package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Manager writes materialized files into a single output directory
type Manager struct {
	outputDir string
}

// NewManager creates the output directory (recursively, idempotent) and
// returns a manager bound to it
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// Path returns the absolute-or-relative path name would be written to
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Save streams r into name through a temporary file and an atomic rename.
// It returns the final path and the number of bytes written. An existing
// file with the same name is replaced.
func (m *Manager) Save(r io.Reader, name string) (string, int64, error) {
	filename := m.Path(name)
	tempFile := filename + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to write %s: %w", name, err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, n, nil
}

// Remove deletes name and any leftover temporary file. A missing file is not
// an error.
func (m *Manager) Remove(name string) error {
	filename := m.Path(name)
	os.Remove(filename + ".tmp")
	if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// Count returns the number of completed files in the output directory
func (m *Manager) Count() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && !strings.HasSuffix(entry.Name(), ".tmp") {
			count++
		}
	}
	return count, nil
}
