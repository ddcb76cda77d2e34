package page

import (
	"strings"

	"golang.org/x/net/html"
)

// textContent walks the node tree and joins text nodes with single
// spaces. Script and style bodies are skipped so their source never
// leaks into phrase matching.
func textContent(node *html.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := normalizeWhitespace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
			return
		case html.ElementNode:
			tag := strings.ToLower(n.Data)
			if tag == "script" || tag == "style" {
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return b.String()
}

// flattenFragment parses a serialized element and returns its visible
// text. Parse errors flatten to an empty string; callers treat that the
// same as an empty element.
func flattenFragment(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return textContent(node)
}

func normalizeWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// isAllDigits reports whether s is a non-empty run of ASCII digits, the
// shape of a day-of-month label in the calendar widget.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
