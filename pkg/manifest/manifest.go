package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"
)

// CurrentVersion is written into every new manifest
const CurrentVersion = 1

// Kind names the workflow a manifest came from
type Kind string

const (
	KindLinks  Kind = "links"
	KindImages Kind = "images"
	KindURLs   Kind = "urls"
)

// Manifest is a collected reference set persisted between runs, so one
// workflow's output can feed another (links into a URL batch, images into
// a later download)
type Manifest struct {
	Version    int        `json:"version"`
	Kind       Kind       `json:"kind"`
	Query      string     `json:"query,omitempty"`
	Sources    []string   `json:"sources,omitempty"`
	References []string   `json:"references"`
	Downloads  []Download `json:"downloads,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Download records what happened to one reference when it was materialized
type Download struct {
	Index int    `json:"index"`
	Path  string `json:"path,omitempty"`
	Bytes int64  `json:"bytes,omitempty"`
	Error string `json:"error,omitempty"`
}

// New creates a manifest for refs
func New(kind Kind, query string, refs []string) *Manifest {
	if refs == nil {
		refs = []string{}
	}
	now := time.Now()
	return &Manifest{
		Version:    CurrentVersion,
		Kind:       kind,
		Query:      query,
		References: refs,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Save writes m to path atomically, creating parent directories
func Save(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}
	m.UpdatedAt = time.Now()

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync manifest file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// Load reads the manifest at path
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var m Manifest
	if err := json.NewDecoder(file).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Version > CurrentVersion {
		return nil, fmt.Errorf("manifest version %d is newer than supported version %d", m.Version, CurrentVersion)
	}
	if m.References == nil {
		m.References = []string{}
	}
	return &m, nil
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// DefaultPath returns where a manifest for kind and query is stored when
// the user does not name a file
func DefaultPath(kind Kind, query string) (string, error) {
	dataDir, err := DataDirectory()
	if err != nil {
		return "", err
	}

	slug := strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(query), "-"), "-")
	if slug == "" {
		slug = "untitled"
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}
	return filepath.Join(dataDir, "manifests", fmt.Sprintf("%s-%s.json", kind, slug)), nil
}

// DataDirectory returns the per-user data directory for the current OS
func DataDirectory() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "serpgrab"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		return filepath.Join(appData, "serpgrab"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "serpgrab"), nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "serpgrab"), nil
	}
}
