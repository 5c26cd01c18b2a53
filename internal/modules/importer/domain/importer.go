package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrPluginNotFound   = errors.New("importer plugin not found")
	ErrPluginDisabled   = errors.New("importer plugin is disabled")
	ErrChecksumMismatch = errors.New("importer plugin checksum mismatch")
	ErrPluginTimeout    = errors.New("importer plugin timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest describes one importer binary registered in plugins.json.
type Manifest struct {
	Name    string            `json:"name"`
	Version string            `json:"version"`
	Binary  string            `json:"binary"`
	SHA256  string            `json:"sha256"`
	Enabled bool              `json:"enabled"`
	Options map[string]string `json:"options,omitempty"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("plugin binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("plugin sha256 must be lowercase 64-char hex")
	}
	return nil
}

type Metadata struct {
	Name    string
	Version string
	Source  string
}

// FetchRequest bounds the history a plugin should return. Zero bounds are
// open; ToMs is exclusive.
type FetchRequest struct {
	FromMs  int64
	ToMs    int64
	Options map[string]string
}

func (r FetchRequest) Validate() error {
	if r.FromMs < 0 || r.ToMs < 0 {
		return fmt.Errorf("fetch bounds must not be negative")
	}
	if r.ToMs > 0 && r.FromMs >= r.ToMs {
		return fmt.Errorf("fetch range is empty")
	}
	return nil
}

// ActivityRecord is one span of externally tracked work.
type ActivityRecord struct {
	Timestamp  int64
	Project    string
	Category   string
	DurationMs int64
}
