package sandbox

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InjectHTML rewrites a provider document fetched on the host's origin:
// a <base> pointing at the provider keeps its relative URLs working, the
// blocker script runs before any of the provider's own scripts, and
// target="_blank" anchors open in place. It returns the rewritten document
// and the number of anchors it neutralised.
func InjectHTML(r io.Reader, base string) (string, int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", 0, fmt.Errorf("parsing embed document: %w", err)
	}

	head := doc.Find("head").First()
	if head.Length() == 0 {
		return "", 0, fmt.Errorf("embed document has no head")
	}

	// The script goes in first, then the base in front of it, so the
	// base element is the first child of <head>.
	head.PrependHtml("<script>" + escapeScript(Script()) + "</script>")
	if base != "" && doc.Find("base[href]").Length() == 0 {
		head.PrependHtml(`<base href="` + html.EscapeString(base) + `">`)
	}

	neutralised := 0
	doc.Find(`a[target]`).Each(func(_ int, a *goquery.Selection) {
		if strings.EqualFold(a.AttrOr("target", ""), "_blank") {
			a.RemoveAttr("target")
			neutralised++
		}
	})

	out, err := doc.Html()
	if err != nil {
		return "", 0, fmt.Errorf("rendering embed document: %w", err)
	}
	return out, neutralised, nil
}

// escapeScript keeps the script body from closing its own element.
func escapeScript(src string) string {
	return strings.ReplaceAll(src, "</script", `<\/script`)
}
