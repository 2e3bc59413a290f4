package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Document wraps parsed markup for the listing, search and image lookups.
type Document struct {
	doc *goquery.Document
}

func ParseDocument(markup string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Texts returns the trimmed, non-blank texts of every node matching selector.
func (d *Document) Texts(selector string) []string {
	var texts []string
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts
}

// FirstAttr returns attr of the first node matching selector.
func (d *Document) FirstAttr(selector, attr string) (string, bool) {
	sel := d.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr(attr)
}

// AnchorByText finds the first anchor whose trimmed text equals text.
// found reports whether such an anchor exists; the href may still be absent.
func (d *Document) AnchorByText(text string) (href string, found bool, hasHref bool) {
	sel := d.doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == text
	}).First()
	if sel.Length() == 0 {
		return "", false, false
	}
	href, hasHref = sel.Attr("href")
	return href, true, hasHref
}

// AnchorsWrappingImage returns the distinct hrefs of anchors that contain an
// image whose alt text equals alt, ignoring case.
func (d *Document) AnchorsWrappingImage(alt string) []string {
	seen := make(map[string]bool)
	var hrefs []string
	d.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if s.Find("img").FilterFunction(altEquals(alt)).Length() == 0 {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		hrefs = append(hrefs, href)
	})
	return hrefs
}

// ImageByAlt returns the src of the first image whose alt equals alt, ignoring case.
func (d *Document) ImageByAlt(alt string) (string, bool) {
	sel := d.doc.Find("img").FilterFunction(altEquals(alt)).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr("src")
}

func altEquals(alt string) func(int, *goquery.Selection) bool {
	return func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr("alt")
		return ok && strings.EqualFold(strings.TrimSpace(v), alt)
	}
}
