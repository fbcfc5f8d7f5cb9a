package article

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TitleFromHTML recovers a title from the raw markup the source attaches to
// a record: the title attribute of the first anchor, else the anchor text.
// Returns "" when the markup holds neither.
func TitleFromHTML(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	a := doc.Find("a").First()
	if title, ok := a.Attr("title"); ok && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	return strings.TrimSpace(a.Text())
}

// FirstLink returns the href of the first anchor in the markup, which by
// source convention is the original story URL. Returns "" when absent.
func FirstLink(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	href, _ := doc.Find("a[href]").First().Attr("href")
	return strings.TrimSpace(href)
}
