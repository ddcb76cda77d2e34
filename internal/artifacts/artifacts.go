// Package artifacts persists diagnostic captures of failing pages: the
// rendered HTML and a viewport screenshot, stored under a content-hashed
// path so a failure that repeats with the same page costs one write.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"visawatch/internal/config"
)

// Store writes captures to the local filesystem.
type Store struct {
	baseDir string
}

// New constructs a filesystem-backed store. It returns nil when captures
// are disabled; Save on a nil store is a no-op.
func New(cfg config.ArtifactsConfig) (*Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dir := strings.TrimSpace(cfg.Directory)
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts directory: %w", err)
	}
	return &Store{baseDir: dir}, nil
}

// Capture is one failing-page snapshot.
type Capture struct {
	Label      string // short failure tag, eg. "booking-failed"
	HTML       string // rendered DOM at the time of failure
	Screenshot []byte // viewport PNG, optional
}

// Save persists the capture and returns the relative path of the primary
// file. Files are named by content hash, so saving the same page twice
// leaves the first copy untouched.
func (s *Store) Save(ctx context.Context, c Capture) (string, error) {
	if s == nil {
		return "", nil
	}
	html := []byte(c.HTML)
	primary := html
	if len(primary) == 0 {
		primary = c.Screenshot
	}
	if len(primary) == 0 {
		return "", nil
	}
	if ctx != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
	}

	sum := sha256.Sum256(primary)
	hash := hex.EncodeToString(sum[:])
	subdir := hash[:2]
	stem := hash[2:]
	if label := cleanLabel(c.Label); label != "" {
		stem = label + "-" + stem
	}
	if err := os.MkdirAll(filepath.Join(s.baseDir, subdir), 0o755); err != nil {
		return "", fmt.Errorf("create artifacts subdir: %w", err)
	}

	var relative string
	if len(html) > 0 {
		relative = filepath.Join(subdir, stem+".html")
		if err := s.writeOnce(relative, html); err != nil {
			return "", err
		}
	}
	if len(c.Screenshot) > 0 {
		rel := filepath.Join(subdir, stem+".png")
		if err := s.writeOnce(rel, c.Screenshot); err != nil {
			return "", err
		}
		if relative == "" {
			relative = rel
		}
	}
	return relative, nil
}

// writeOnce writes the file unless an identically named capture exists.
func (s *Store) writeOnce(relative string, data []byte) error {
	full := filepath.Join(s.baseDir, relative)
	if _, err := os.Stat(full); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat artifact: %w", err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return fmt.Errorf("write artifact: %w", err)
		}
	}
	return nil
}

// cleanLabel reduces a failure tag to a filesystem-safe slug.
func cleanLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
