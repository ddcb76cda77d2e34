// Package sitecheck probes the scheduling site over plain HTTP before a
// browser is paid for. During load-shedding windows the site serves its
// busy banner to every request, so a few kilobytes of GET are enough to
// learn what a full Chrome launch would discover minutes later.
package sitecheck

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"visawatch/internal/config"
	"visawatch/internal/page"
)

// Checker fetches the sign-in page and scans it for the busy banner.
type Checker struct {
	client       *http.Client
	url          string
	userAgent    string
	maxBodyBytes int64
	logger       *slog.Logger
}

// New builds a checker from configuration. It returns nil when the probe
// is disabled; Probe on a nil checker always passes.
func New(cfg config.SitecheckConfig, site config.SiteConfig, userAgent string, logger *slog.Logger) *Checker {
	if !cfg.Enabled {
		return nil
	}
	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout: timeout,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Checker{
		client:       &http.Client{Timeout: timeout, Transport: transport},
		url:          site.SignInURL(),
		userAgent:    userAgent,
		maxBodyBytes: maxBody,
		logger:       logger.With("component", "sitecheck"),
	}
}

// Probe fetches the sign-in page once. A busy banner in the body yields
// page.ErrSiteBusy regardless of HTTP status; any other failure comes back
// as a plain error the caller should treat as transient, since the probe
// path and the browser path can disagree about reachability.
func (c *Checker) Probe(ctx context.Context) error {
	if c == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe sign-in page: %w", err)
	}

	body, err := c.readBody(resp)
	if err != nil {
		return err
	}
	c.logger.Debug("sign-in page probed",
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(start).String())

	if phrase, ok := page.MatchBusyPhrase(string(body)); ok {
		return fmt.Errorf("%w: %s", page.ErrSiteBusy, phrase)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sign-in page returned status %d", resp.StatusCode)
	}
	return nil
}

// readBody decodes the response body according to its Content-Encoding.
// Bodies over the limit are truncated rather than rejected: the probe only
// scans for phrases, and the banner sits near the top of the page.
func (c *Checker) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, c.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read sign-in page: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		body = body[:c.maxBodyBytes]
	}
	return body, nil
}
