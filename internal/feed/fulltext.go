package feed

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"

	"horse.fit/culldron/internal/reader"
)

// fullText stands in for the body of an entry that has none. It tries the
// linked page's main text, then the page excerpt, then the entry title, so a
// title-only entry still yields at least one sentence. Paragraphs are separated
// by blank lines.
func (f *Fetcher) fullText(ctx context.Context, link, title string) string {
	text, err := f.pageText(ctx, link)
	if err != nil {
		f.logger.Warn().Err(err).Str("post_url", link).Msg("full text fetch failed")
	}
	if text != "" {
		return text
	}
	if text = reader.CleanText(title); text != "" {
		f.logger.Debug().Str("post_url", link).Msg("full text unavailable, using entry title")
	}
	return text
}

func (f *Fetcher) pageText(ctx context.Context, link string) (string, error) {
	body, mediaType, err := f.get(ctx, link, acceptPage)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	if mediaType == "text/plain" {
		return reader.CleanText(string(body)), nil
	}

	pageURL, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("parse page URL: %w", err)
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return "", fmt.Errorf("extract page: %w", err)
	}

	var rendered strings.Builder
	if err := article.RenderText(&rendered); err == nil {
		if text := reader.CleanText(rendered.String()); text != "" {
			return text, nil
		}
	}
	return reader.CleanText(article.Excerpt()), nil
}
