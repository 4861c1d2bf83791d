package reader

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const blockSelector = "p,div,section,article,header,footer,li,ul,ol,h1,h2,h3,h4,h5,h6,blockquote,pre,tr,table,figcaption"

// Clean strips markup from feed content and collapses whitespace. Block
// elements become paragraph breaks so sentence splitting sees them.
func Clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if !looksLikeHTML(trimmed) {
		return CleanText(html.UnescapeString(trimmed))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return CleanText(html.UnescapeString(trimmed))
	}

	doc.Find("script,style,noscript,iframe,svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).AppendHtml("\n")

	return CleanText(doc.Text())
}

func looksLikeHTML(value string) bool {
	open := strings.IndexByte(value, '<')
	if open < 0 {
		return false
	}
	return strings.IndexByte(value[open:], '>') > 0
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CleanText collapses whitespace within each line and keeps the non-empty
// lines as paragraphs separated by a blank line.
func CleanText(raw string) string {
	lines := strings.Split(newlines.Replace(raw), "\n")
	paragraphs := lines[:0]
	for _, line := range lines {
		if words := strings.Fields(line); len(words) > 0 {
			paragraphs = append(paragraphs, strings.Join(words, " "))
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
