package fetch

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"swedify/internal/convert"
)

var _ convert.Simplifier = (*Simplifier)(nil)

// noiseSelectors are removed before the content container is picked.
var noiseSelectors = []string{
	"script", "style", "noscript", "template",
	"nav", "footer", "header", "aside",
	"img", "picture", "figure", "svg", "canvas",
	"iframe", "video", "audio",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement",
	".comments", "#comments", ".cookie-banner", ".newsletter",
}

// Simplifier reduces a recipe page to its structured recipe data and the
// main content as Markdown.
type Simplifier struct{}

// NewSimplifier creates a Simplifier.
func NewSimplifier() *Simplifier {
	return &Simplifier{}
}

// Simplify keeps schema.org Recipe JSON-LD blocks verbatim and converts
// the main content container to Markdown.
func (s *Simplifier) Simplify(markup string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var structured []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if strings.Contains(text, `Recipe"`) {
			structured = append(structured, text)
		}
	})

	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	var content *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		return "", fmt.Errorf("no content container found in HTML")
	}

	html, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("serializing content: %w", err)
	}
	markdown, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("converting HTML to markdown: %w", err)
	}

	var b strings.Builder
	if len(structured) > 0 {
		b.WriteString("Structured recipe data (schema.org):\n")
		for _, block := range structured {
			b.WriteString(block)
			b.WriteString("\n\n")
		}
		b.WriteString("Page text:\n")
	}
	b.WriteString(strings.TrimSpace(markdown))
	return b.String(), nil
}
