// Package feed reads RSS, Atom and JSON feeds into articles for ingestion.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"horse.fit/culldron/internal/ingest"
	"horse.fit/culldron/internal/reader"
)

const (
	DefaultTimeout       = 20 * time.Second
	DefaultBodyByteLimit = 10 * 1024 * 1024

	defaultUserAgent = "culldron-feed/1.0"

	acceptFeed = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"
	acceptPage = "text/html, application/xhtml+xml, text/plain;q=0.9, */*;q=0.5"
)

type Options struct {
	Timeout       time.Duration
	UserAgent     string
	BodyByteLimit int64
	HTTPClient    *http.Client
	// FullText fetches the linked page for entries without a body.
	FullText bool
}

type Fetcher struct {
	opts   Options
	client *http.Client
	logger zerolog.Logger
}

func NewFetcher(opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BodyByteLimit <= 0 {
		opts.BodyByteLimit = DefaultBodyByteLimit
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = defaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Fetcher{opts: opts, client: client, logger: logger}
}

// Fetch downloads and parses feedURL. Entries without a link are dropped.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]ingest.Article, error) {
	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("feed URL is required")
	}

	body, err := f.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	articles := make([]ingest.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			f.logger.Warn().Str("feed_url", feedURL).Str("title", item.Title).Msg("feed entry has no link")
			continue
		}

		content := itemContent(item)
		if f.opts.FullText && reader.Clean(content) == "" {
			content = f.fullText(ctx, link, item.Title)
		}

		articles = append(articles, ingest.Article{
			PostURL:     link,
			PostTitle:   strings.TrimSpace(item.Title),
			Content:     content,
			PublishedAt: publishedAt(item),
			FeedURL:     feedURL,
		})
	}

	f.logger.Debug().
		Str("feed_url", feedURL).
		Str("feed_type", parsed.FeedType).
		Int("entries", len(parsed.Items)).
		Int("articles", len(articles)).
		Msg("feed parsed")
	return articles, nil
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	body, _, err := f.get(ctx, feedURL, acceptFeed)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return body, nil
}

// get downloads target and returns its body, capped at BodyByteLimit, with the
// response media type.
func (f *Fetcher) get(ctx context.Context, target, accept string) ([]byte, string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.BodyByteLimit))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return body, mediaType, nil
}

// itemContent prefers the entry summary and falls back to its full content.
func itemContent(item *gofeed.Item) string {
	if summary := strings.TrimSpace(item.Description); summary != "" {
		return summary
	}
	return strings.TrimSpace(item.Content)
}

func publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed == nil || item.PublishedParsed.IsZero() {
		return nil
	}
	published := item.PublishedParsed.UTC()
	return &published
}
