package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// ErrNoMatch is returned when no strategy in an ordered list matched
// within its window.
var ErrNoMatch = errors.New("no locator strategy matched")

// Strategy is one way of locating an element. The target site's markup is
// not stable, so every page operation carries an ordered list of these
// and takes the first that matches.
type Strategy struct {
	// Name labels the strategy in logs.
	Name string
	// Query is a CSS selector, or an XPath/plain-text query when By is
	// chromedp.BySearch.
	Query string
	// By overrides the query mechanism. Nil means ByQuery.
	By chromedp.QueryOption
}

// Css builds a CSS selector strategy.
func Css(name, selector string) Strategy {
	return Strategy{Name: name, Query: selector}
}

// Search builds a DOM-search strategy (XPath or plain text).
func Search(name, query string) Strategy {
	return Strategy{Name: name, Query: query, By: chromedp.BySearch}
}

func (s Strategy) opts(extra ...chromedp.QueryOption) []chromedp.QueryOption {
	by := s.By
	if by == nil {
		by = chromedp.ByQuery
	}
	return append([]chromedp.QueryOption{by}, extra...)
}

// Match reports which strategy of an ordered list located its nodes.
type Match struct {
	Strategy Strategy
	Index    int
	Nodes    []*cdp.Node
}

// FirstMatch polls the ordered strategies until one matches at least one
// node or the window elapses. Strategies earlier in the list win even
// when a later one would also match.
func (b *Browser) FirstMatch(ctx context.Context, within time.Duration, strategies ...Strategy) (Match, error) {
	if len(strategies) == 0 {
		return Match{}, errors.New("no locator strategies given")
	}
	if within <= 0 {
		within = b.opts.FindTimeout.Duration
	}
	deadline := time.Now().Add(within)

	for {
		for i, st := range strategies {
			var nodes []*cdp.Node
			err := b.run(ctx, 2*time.Second,
				chromedp.Nodes(st.Query, &nodes, st.opts(chromedp.AtLeast(0))...),
			)
			if err != nil {
				if ctx.Err() != nil {
					return Match{}, ctx.Err()
				}
				continue
			}
			if len(nodes) > 0 {
				b.logger.Debug("locator matched", "strategy", st.Name, "rank", i, "nodes", nodeIDs(nodes))
				return Match{Strategy: st, Index: i, Nodes: nodes}, nil
			}
		}
		if time.Now().After(deadline) {
			return Match{}, fmt.Errorf("%w after %s (%d strategies)", ErrNoMatch, within, len(strategies))
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return Match{}, ctx.Err()
		}
	}
}

// Exists reports whether any strategy currently matches, without waiting.
func (b *Browser) Exists(ctx context.Context, strategies ...Strategy) bool {
	for _, st := range strategies {
		var nodes []*cdp.Node
		err := b.run(ctx, 2*time.Second,
			chromedp.Nodes(st.Query, &nodes, st.opts(chromedp.AtLeast(0))...),
		)
		if err == nil && len(nodes) > 0 {
			return true
		}
	}
	return false
}

// Click locates the element through the ordered strategies and clicks the
// first match. The click waits for visibility, bounded by the window.
func (b *Browser) Click(ctx context.Context, within time.Duration, strategies ...Strategy) (Match, error) {
	m, err := b.FirstMatch(ctx, within, strategies...)
	if err != nil {
		return Match{}, err
	}
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.Click(m.Strategy.Query, m.Strategy.opts()...)); err != nil {
		return m, fmt.Errorf("click %s: %w", m.Strategy.Name, err)
	}
	b.bumpEpoch()
	return m, nil
}

// ClickNode clicks a previously captured node directly.
func (b *Browser) ClickNode(ctx context.Context, node *cdp.Node) error {
	if node == nil {
		return errors.New("nil node")
	}
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.MouseClickNode(node)); err != nil {
		return fmt.Errorf("click node %d: %w", node.NodeID, err)
	}
	b.bumpEpoch()
	return nil
}

// ClickNodeID clicks the node with the given backend identifier. The id
// must come from the current page-state epoch; stale ids miss or hit the
// wrong element.
func (b *Browser) ClickNodeID(ctx context.Context, id int64) error {
	return b.ClickNode(ctx, &cdp.Node{NodeID: cdp.NodeID(id)})
}

// OuterHTMLNode returns the serialized markup of one captured node.
func (b *Browser) OuterHTMLNode(ctx context.Context, node *cdp.Node) (string, error) {
	if node == nil {
		return "", errors.New("nil node")
	}
	var html string
	err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("outer html of node %d: %w", node.NodeID, err)
	}
	return html, nil
}

// PressKey sends a raw key event to the focused element.
func (b *Browser) PressKey(ctx context.Context, key string) error {
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.KeyEvent(key)); err != nil {
		return fmt.Errorf("press key: %w", err)
	}
	b.bumpEpoch()
	return nil
}

// SendKeys locates the element and types the value into it.
func (b *Browser) SendKeys(ctx context.Context, value string, within time.Duration, strategies ...Strategy) (Match, error) {
	m, err := b.FirstMatch(ctx, within, strategies...)
	if err != nil {
		return Match{}, err
	}
	err = b.run(ctx, b.opts.FindTimeout.Duration,
		chromedp.Clear(m.Strategy.Query, m.Strategy.opts()...),
		chromedp.SendKeys(m.Strategy.Query, value, m.Strategy.opts()...),
	)
	if err != nil {
		return m, fmt.Errorf("send keys to %s: %w", m.Strategy.Name, err)
	}
	b.bumpEpoch()
	return m, nil
}

// SetValue writes an input's value property without key events.
func (b *Browser) SetValue(ctx context.Context, value string, within time.Duration, strategies ...Strategy) error {
	m, err := b.FirstMatch(ctx, within, strategies...)
	if err != nil {
		return err
	}
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.SetValue(m.Strategy.Query, value, m.Strategy.opts()...)); err != nil {
		return fmt.Errorf("set value on %s: %w", m.Strategy.Name, err)
	}
	b.bumpEpoch()
	return nil
}

// Value reads an input's current value through the first matching strategy.
func (b *Browser) Value(ctx context.Context, within time.Duration, strategies ...Strategy) (string, error) {
	m, err := b.FirstMatch(ctx, within, strategies...)
	if err != nil {
		return "", err
	}
	var value string
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.Value(m.Strategy.Query, &value, m.Strategy.opts()...)); err != nil {
		return "", fmt.Errorf("read value of %s: %w", m.Strategy.Name, err)
	}
	return value, nil
}

// Text reads the trimmed text content of the first matching strategy.
func (b *Browser) Text(ctx context.Context, within time.Duration, strategies ...Strategy) (string, error) {
	m, err := b.FirstMatch(ctx, within, strategies...)
	if err != nil {
		return "", err
	}
	var text string
	if err := b.run(ctx, b.opts.FindTimeout.Duration, chromedp.Text(m.Strategy.Query, &text, m.Strategy.opts()...)); err != nil {
		return "", fmt.Errorf("read text of %s: %w", m.Strategy.Name, err)
	}
	return text, nil
}
