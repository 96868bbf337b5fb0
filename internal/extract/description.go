package extract

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jobspy-server/internal/scraper"
)

// RenderDescription converts description HTML into the requested format.
func RenderDescription(html string, format scraper.DescriptionFormat) (string, error) {
	switch format {
	case scraper.FormatHTML:
		return strings.TrimSpace(html), nil
	case scraper.FormatPlain:
		return plainText(html)
	default:
		out, err := md.NewConverter("", true, nil).ConvertString(html)
		if err != nil {
			return "", fmt.Errorf("convert description to markdown: %w", err)
		}
		return strings.TrimSpace(out), nil
	}
}

// plainText flattens HTML to text with one line per block element.
func plainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse description: %w", err)
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6").AppendHtml("\n")
	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n"), nil
}
