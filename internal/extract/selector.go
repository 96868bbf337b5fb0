// Package extract turns listing and detail pages into job postings using ordered
// selector fallback chains.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selector locates one value inside a document or card.
type Selector struct {
	// Query is a CSS selector; cascadia extensions such as :has are allowed.
	Query string
	// Attr reads an attribute instead of the text.
	Attr string
	// HTML reads the inner HTML instead of the text.
	HTML bool
	// Contains keeps only matches whose text contains this, ignoring case.
	Contains string
	// Last picks the final match rather than the first.
	Last bool
}

// Q is shorthand for a text selector.
func Q(query string) Selector {
	return Selector{Query: query}
}

// Node returns the element this selector picks within root.
func (s Selector) Node(root *goquery.Selection) (*goquery.Selection, bool) {
	matches := root.Find(s.Query)
	if s.Contains != "" {
		needle := strings.ToLower(s.Contains)
		matches = matches.FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return strings.Contains(strings.ToLower(sel.Text()), needle)
		})
	}
	if matches.Length() == 0 {
		return nil, false
	}
	if s.Last {
		return matches.Last(), true
	}
	return matches.First(), true
}

// Value returns the trimmed value this selector reads within root.
func (s Selector) Value(root *goquery.Selection) (string, bool) {
	node, ok := s.Node(root)
	if !ok {
		return "", false
	}
	var value string
	switch {
	case s.Attr != "":
		value = node.AttrOr(s.Attr, "")
	case s.HTML:
		html, err := node.Html()
		if err != nil {
			return "", false
		}
		value = html
	default:
		value = node.Text()
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

// Chain is an ordered list of fallbacks. The first selector yielding a value wins.
type Chain []Selector

// Value returns the first non-empty value in the chain.
func (c Chain) Value(root *goquery.Selection) (string, bool) {
	for _, sel := range c {
		if value, ok := sel.Value(root); ok {
			return value, true
		}
	}
	return "", false
}

// Node returns the first element in the chain with non-empty text.
func (c Chain) Node(root *goquery.Selection) (*goquery.Selection, bool) {
	for _, sel := range c {
		node, ok := sel.Node(root)
		if ok && strings.TrimSpace(node.Text()) != "" {
			return node, true
		}
	}
	return nil, false
}
