package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SourceService reads GeoJSON files from the data directory.
type SourceService struct {
	sourcesDir string
}

// NewSourceService creates a new source service rooted at dataDir.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{sourcesDir: dataDir}
}

// List returns all GeoJSON files in the data directory.
func (s *SourceService) List() ([]SourceFile, error) {
	entries, err := os.ReadDir(s.sourcesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SourceFile{}, nil
		}
		return nil, err
	}

	files := []SourceFile{}
	for _, entry := range entries {
		if entry.IsDir() || !isGeoJSON(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, SourceFile{
			Name:     entry.Name(),
			Size:     formatSize(info.Size()),
			FileType: "GeoJSON",
		})
	}

	return files, nil
}

// Read returns the contents of a source file.
func (s *SourceService) Read(filename string) ([]byte, error) {
	if err := validateFilename(filename); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(s.sourcesDir, filename))
}

func isGeoJSON(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".geojson", ".json":
		return true
	}
	return false
}

// validateFilename rejects path traversal and non-GeoJSON files.
func validateFilename(filename string) error {
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid filename %q", filename)
	}
	if !isGeoJSON(filename) {
		return fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}
	return nil
}

// formatSize returns a human-readable file size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
