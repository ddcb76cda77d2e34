package sitecheck

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"visawatch/internal/config"
	"visawatch/internal/page"
)

func testChecker(t *testing.T, baseURL string, maxBody int64) *Checker {
	t.Helper()
	cfg := config.SitecheckConfig{
		Enabled:      true,
		Timeout:      config.DurationFrom(5 * time.Second),
		MaxBodyBytes: maxBody,
	}
	site := config.SiteConfig{BaseURL: baseURL}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(cfg, site, "probe-agent/1.0", logger)
	if c == nil {
		t.Fatal("expected an enabled checker")
	}
	return c
}

func TestProbeHealthyPage(t *testing.T) {
	var gotPath, gotAgent, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		gotEncoding = r.Header.Get("Accept-Encoding")
		_, _ = io.WriteString(w, `<html><body><form id="sign_in_form">Email</form></body></html>`)
	}))
	defer srv.Close()

	c := testChecker(t, srv.URL, 0)
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("healthy page should pass, got %v", err)
	}
	if gotPath != "/users/sign_in" {
		t.Fatalf("probe hit %q, want /users/sign_in", gotPath)
	}
	if gotAgent != "probe-agent/1.0" {
		t.Fatalf("probe sent user agent %q", gotAgent)
	}
	if !strings.Contains(gotEncoding, "br") {
		t.Fatalf("probe should accept brotli, sent %q", gotEncoding)
	}
}

func TestProbeDetectsBusyBanner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><div class="alert">The system is busy. Please try again later.</div></body></html>`)
	}))
	defer srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if !errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("expected ErrSiteBusy, got %v", err)
	}
}

func TestProbeBusyWinsOverErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `<html><body>System is busy, come back soon.</body></html>`)
	}))
	defer srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if !errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("busy banner on a 503 should still classify as busy, got %v", err)
	}
}

func TestProbeErrorStatusWithoutBannerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<html><body>Something went wrong.</body></html>`)
	}))
	defer srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("plain 500 must not classify as busy, got %v", err)
	}
}

func TestProbeDecodesGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, `<html><body>The system is currently overloaded.</body></html>`)
		_ = gz.Close()
	}))
	defer srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if !errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("expected busy from gzip body, got %v", err)
	}
}

func TestProbeDecodesBrotliBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "br")
		br := brotli.NewWriter(w)
		_, _ = io.WriteString(br, `<html><body>Service temporarily unavailable.</body></html>`)
		_ = br.Close()
	}))
	defer srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if !errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("expected busy from brotli body, got %v", err)
	}
}

func TestProbeScansOnlyWithinBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 512)+"system is busy")
	}))
	defer srv.Close()

	// The banner sits past the cap, so the truncated body reads healthy.
	if err := testChecker(t, srv.URL, 64).Probe(context.Background()); err != nil {
		t.Fatalf("truncated body without banner should pass, got %v", err)
	}
}

func TestProbeUnreachableSite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	err := testChecker(t, srv.URL, 0).Probe(context.Background())
	if err == nil {
		t.Fatal("expected an error for an unreachable site")
	}
	if errors.Is(err, page.ErrSiteBusy) {
		t.Fatalf("network failure must not classify as busy, got %v", err)
	}
}

func TestDisabledProbeIsNil(t *testing.T) {
	c := New(config.SitecheckConfig{Enabled: false}, config.SiteConfig{BaseURL: "https://example.invalid"}, "", nil)
	if c != nil {
		t.Fatal("disabled config should yield a nil checker")
	}
	if err := c.Probe(context.Background()); err != nil {
		t.Fatalf("nil checker must pass, got %v", err)
	}
}
