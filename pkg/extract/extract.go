// Package extract pulls link and image references out of a rendered page.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Links returns the resolved href of every anchor in document order,
// resolved against pageURL (or the document's <base href>) the way a
// browser resolves a.href. Unresolvable hrefs are dropped.
func Links(html, pageURL string) []string {
	return collect(html, pageURL, "a[href]", "href", false)
}

// Images returns the resolved src of every img in document order. data:
// references are returned verbatim.
func Images(html, pageURL string) []string {
	return collect(html, pageURL, "img[src]", "src", true)
}

func collect(html, pageURL, selector, attr string, keepData bool) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}

	base := documentBase(doc, pageURL)

	out := []string{}
	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		raw, _ := sel.Attr(attr)
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if strings.HasPrefix(strings.ToLower(raw), "data:") {
			if keepData {
				out = append(out, raw)
			}
			return
		}
		if abs := resolve(base, raw); abs != "" {
			out = append(out, abs)
		}
	})
	return out
}

// documentBase honours <base href> the way the browser does
func documentBase(doc *goquery.Document, pageURL string) *url.URL {
	base, err := url.Parse(pageURL)
	if err != nil || pageURL == "" {
		base = nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if base == nil {
			if parsed, err := url.Parse(strings.TrimSpace(href)); err == nil && parsed.IsAbs() {
				return parsed
			}
			return nil
		}
		if parsed, err := base.Parse(strings.TrimSpace(href)); err == nil {
			return parsed
		}
	}
	return base
}

func resolve(base *url.URL, ref string) string {
	if base == nil {
		parsed, err := url.Parse(ref)
		if err != nil || !parsed.IsAbs() {
			return ""
		}
		return parsed.String()
	}
	parsed, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return parsed.String()
}
