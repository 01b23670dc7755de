package firecrawl

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/abadojack/whatlanggo"

	"parley/internal/textutil"
)

// Extraction is the cleaned text content of a page.
type Extraction struct {
	Title       string
	Description string
	Text        string
}

// ExtractText strips markup, scripts, and navigation chrome from an HTML
// document and returns the remaining prose.
func ExtractText(htmlContent string) (Extraction, error) {
	var empty Extraction
	if strings.TrimSpace(htmlContent) == "" {
		return empty, errors.New("empty document")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return empty, err
	}

	extraction := Extraction{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if val, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		extraction.Description = strings.TrimSpace(val)
	}

	doc.Find("script, style, noscript, iframe, svg").Remove()
	doc.Find("nav, header, footer, aside").Remove()

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}
	extraction.Text = textutil.CollapseWhitespace(text)
	return extraction, nil
}

// DetectLanguage returns the ISO 639-3 code for the dominant language of the
// text, sampling at most the first hundred words. Returns "" for empty input.
func DetectLanguage(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 100 {
		words = words[:100]
	}
	info := whatlanggo.Detect(strings.Join(words, " "))
	return info.Lang.Iso6393()
}
