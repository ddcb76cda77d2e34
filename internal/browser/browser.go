package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"visawatch/internal/config"
)

// ErrNotRunning is returned when an operation is attempted on a closed browser.
var ErrNotRunning = errors.New("browser session is not running")

// Browser owns one long-lived Chrome session. Unlike a per-request
// renderer, the session keeps its cookies and login state across
// operations; the monitor loop is its single owner.
type Browser struct {
	opts   config.BrowserConfig
	logger *slog.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	epoch   atomic.Int64
	dialogs atomic.Int64
	closed  atomic.Bool
}

// Launch starts Chrome and opens a blank tab. The session dies with the
// parent context, so an orphaned process cannot outlive a cancelled run.
func Launch(parent context.Context, opts config.BrowserConfig, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	execOpts := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}
	if bin := strings.TrimSpace(opts.Binary); bin != "" {
		execOpts = append(execOpts, chromedp.ExecPath(bin))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, execOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		opts:        opts,
		logger:      logger.With("component", "browser"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// Force the process to start now so a missing binary fails fast.
	if err := chromedp.Run(tabCtx); err != nil {
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	// Native confirm/alert dialogs are accepted automatically; the page
	// adapter reads the counter to learn whether one fired during submit.
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*cdppage.EventJavascriptDialogOpening); ok {
			b.dialogs.Add(1)
			go func() {
				if err := chromedp.Run(tabCtx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					b.logger.Warn("dialog accept failed", "error", err)
				}
			}()
		}
	})

	b.logger.Debug("chrome session started", "headless", opts.Headless)
	return b, nil
}

// run executes actions on the session tab, bounded by the given timeout
// and interruptible by the caller's context.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if b == nil || b.closed.Load() {
		return ErrNotRunning
	}
	if timeout <= 0 {
		timeout = b.opts.NavTimeout.Duration
	}
	tctx, cancel := context.WithTimeout(b.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tctx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate loads the URL and waits for the document to become ready.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	err := b.run(ctx, b.opts.NavTimeout.Duration,
		chromedp.Navigate(url),
		waitDocumentReady(),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	b.epoch.Add(1)
	return nil
}

// Location returns the current page URL.
func (b *Browser) Location(ctx context.Context) (string, error) {
	var loc string
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// HTML captures the full rendered DOM.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the visible viewport as PNG.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Eval evaluates a JavaScript expression on the page into out.
func (b *Browser) Eval(ctx context.Context, expr string, out any) error {
	return b.run(ctx, b.opts.FindTimeout.Duration, chromedp.Evaluate(expr, out))
}

// Sleep pauses the session without holding the CDP connection.
func (b *Browser) Sleep(ctx context.Context, d time.Duration) error {
	return b.run(ctx, d+time.Second, chromedp.Sleep(d))
}

// Epoch returns the current page-state epoch. Any navigation or mutating
// interaction advances it, invalidating element handles captured before.
func (b *Browser) Epoch() int64 {
	return b.epoch.Load()
}

func (b *Browser) bumpEpoch() {
	b.epoch.Add(1)
}

// Mutated records a page-mutating side effect performed outside the
// locator helpers, advancing the epoch so stale handles are rejected.
func (b *Browser) Mutated() {
	b.bumpEpoch()
}

// DialogCount reports how many native dialogs have been auto-accepted.
func (b *Browser) DialogCount() int64 {
	return b.dialogs.Load()
}

// Close tears the session down gracefully.
func (b *Browser) Close() error {
	if b == nil || !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := chromedp.Cancel(b.tabCtx)
	b.tabCancel()
	b.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close chrome: %w", err)
	}
	return nil
}

// ForceKill terminates the Chrome process without waiting for graceful
// teardown. Used when a cooperative stop could not take effect because
// the session is stuck inside a native call.
func (b *Browser) ForceKill() {
	if b == nil {
		return
	}
	b.closed.Store(true)
	if c := chromedp.FromContext(b.tabCtx); c != nil && c.Browser != nil {
		if proc := c.Browser.Process(); proc != nil {
			if err := proc.Kill(); err != nil {
				b.logger.Warn("force kill failed", "pid", proc.Pid, "error", err)
			} else {
				b.logger.Debug("chrome process killed", "pid", proc.Pid)
			}
		}
	}
	b.tabCancel()
	b.allocCancel()
}

// waitDocumentReady polls document.readyState until the page settles.
func waitDocumentReady() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var readyState string
			if err := chromedp.Evaluate(`document.readyState`, &readyState).Do(ctx); err != nil {
				return err
			}
			if readyState == "complete" || readyState == "interactive" {
				return nil
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
}

// nodeIDs is a tiny helper for logging matched nodes.
func nodeIDs(nodes []*cdp.Node) []int64 {
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = int64(n.NodeID)
	}
	return ids
}
