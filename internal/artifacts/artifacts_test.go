package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"visawatch/internal/config"
)

func enabledStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(config.ArtifactsConfig{Enabled: true, Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s == nil {
		t.Fatal("expected a live store")
	}
	return s
}

func TestDisabledStoreIsNil(t *testing.T) {
	s, err := New(config.ArtifactsConfig{Enabled: false, Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s != nil {
		t.Fatal("disabled config should yield a nil store")
	}
	rel, err := s.Save(context.Background(), Capture{Label: "x", HTML: "<html></html>"})
	if err != nil || rel != "" {
		t.Fatalf("nil store Save = (%q, %v), want no-op", rel, err)
	}
}

func TestSaveWritesHashedPaths(t *testing.T) {
	s := enabledStore(t)
	rel, err := s.Save(context.Background(), Capture{
		Label:      "Booking Failed!",
		HTML:       "<html><body>error page</body></html>",
		Screenshot: []byte{0x89, 'P', 'N', 'G'},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	pattern := regexp.MustCompile(`^[0-9a-f]{2}/booking-failed-[0-9a-f]{62}\.html$`)
	if !pattern.MatchString(filepath.ToSlash(rel)) {
		t.Fatalf("unexpected relative path %q", rel)
	}
	htmlPath := filepath.Join(s.baseDir, rel)
	if _, err := os.Stat(htmlPath); err != nil {
		t.Fatalf("html capture missing: %v", err)
	}
	pngPath := strings.TrimSuffix(htmlPath, ".html") + ".png"
	if _, err := os.Stat(pngPath); err != nil {
		t.Fatalf("screenshot capture missing: %v", err)
	}
}

func TestSaveKeepsFirstCopy(t *testing.T) {
	s := enabledStore(t)
	capture := Capture{Label: "busy", HTML: "<html>busy banner</html>"}

	rel, err := s.Save(context.Background(), capture)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	full := filepath.Join(s.baseDir, rel)
	if err := os.WriteFile(full, []byte("sentinel"), 0o644); err != nil {
		t.Fatalf("seed sentinel: %v", err)
	}

	again, err := s.Save(context.Background(), capture)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if again != rel {
		t.Fatalf("path changed between saves: %q vs %q", rel, again)
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if string(raw) != "sentinel" {
		t.Fatal("identical capture must not overwrite the existing file")
	}
}

func TestSaveScreenshotOnly(t *testing.T) {
	s := enabledStore(t)
	rel, err := s.Save(context.Background(), Capture{Label: "blank-page", Screenshot: []byte("png bytes")})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(rel, ".png") {
		t.Fatalf("screenshot-only capture should land on a .png path, got %q", rel)
	}
	if _, err := os.Stat(filepath.Join(s.baseDir, rel)); err != nil {
		t.Fatalf("screenshot missing: %v", err)
	}
}

func TestSaveEmptyCapture(t *testing.T) {
	s := enabledStore(t)
	rel, err := s.Save(context.Background(), Capture{Label: "nothing"})
	if err != nil || rel != "" {
		t.Fatalf("empty capture Save = (%q, %v), want no-op", rel, err)
	}
}

func TestSaveHonoursCancelledContext(t *testing.T) {
	s := enabledStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Save(ctx, Capture{HTML: "<html></html>"}); err == nil {
		t.Fatal("expected context error")
	}
}
