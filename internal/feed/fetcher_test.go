package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>Health Tech</title>
  <link>https://health.example.com</link>
  <description>News</description>
  <item>
    <title>AI triage in hospitals</title>
    <link>https://health.example.com/ai-triage</link>
    <description><![CDATA[<p>Hospitals use AI to triage patients.</p>]]></description>
    <pubDate>Mon, 03 Mar 2025 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Body only</title>
    <link>https://health.example.com/body-only</link>
    <content:encoded><![CDATA[<p>Doctors adopt new models.</p>]]></content:encoded>
  </item>
  <item>
    <title>No link</title>
    <description>Orphan entry.</description>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Sport</title>
  <id>urn:sport</id>
  <updated>2025-03-03T10:00:00Z</updated>
  <entry>
    <title>Cup final</title>
    <id>urn:sport:1</id>
    <link href="https://sport.example.com/final"/>
    <updated>2025-03-03T10:00:00Z</updated>
    <published>2025-03-02T18:30:00Z</published>
    <summary>The team won the final.</summary>
  </entry>
</feed>`

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchRSS(t *testing.T) {
	t.Parallel()

	server := serve(t, "application/rss+xml", rssFixture)
	fetcher := NewFetcher(Options{Timeout: 2 * time.Second}, zerolog.Nop())

	articles, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, articles, 2)

	first := articles[0]
	assert.Equal(t, "https://health.example.com/ai-triage", first.PostURL)
	assert.Equal(t, "AI triage in hospitals", first.PostTitle)
	assert.Equal(t, "<p>Hospitals use AI to triage patients.</p>", first.Content)
	assert.Equal(t, server.URL, first.FeedURL)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, first.PublishedAt.Equal(time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)))

	second := articles[1]
	assert.Equal(t, "<p>Doctors adopt new models.</p>", second.Content)
	assert.Nil(t, second.PublishedAt)
}

func TestFetchAtom(t *testing.T) {
	t.Parallel()

	server := serve(t, "application/atom+xml", atomFixture)
	articles, err := NewFetcher(Options{}, zerolog.Nop()).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://sport.example.com/final", articles[0].PostURL)
	assert.Equal(t, "The team won the final.", articles[0].Content)
	require.NotNil(t, articles[0].PublishedAt)
	assert.True(t, articles[0].PublishedAt.Equal(time.Date(2025, 3, 2, 18, 30, 0, 0, time.UTC)))
}

func TestFetchSendsUserAgent(t *testing.T) {
	t.Parallel()

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(atomFixture))
	}))
	defer server.Close()

	_, err := NewFetcher(Options{UserAgent: "culldron-test/2"}, zerolog.Nop()).Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "culldron-test/2", got)
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(Options{}, zerolog.Nop())

	_, err := fetcher.Fetch(context.Background(), " ")
	assert.Error(t, err)

	notFound := httptest.NewServer(http.NotFoundHandler())
	defer notFound.Close()
	_, err = fetcher.Fetch(context.Background(), notFound.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	garbage := serve(t, "text/plain", "this is not a feed")
	_, err = fetcher.Fetch(context.Background(), garbage.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse feed")
}

func TestFetchFullTextForEmptyEntries(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	feedBody := strings.ReplaceAll(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description>
<item><title>Title only</title><link>BASE/post</link></item>
</channel></rss>`, "BASE", server.URL)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	})
	mux.HandleFunc("/post", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("Full body text from the page."))
	})

	withFullText, err := NewFetcher(Options{FullText: true}, zerolog.Nop()).Fetch(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	require.Len(t, withFullText, 1)
	assert.Equal(t, "Full body text from the page.", withFullText[0].Content)

	without, err := NewFetcher(Options{}, zerolog.Nop()).Fetch(context.Background(), server.URL+"/feed")
	require.NoError(t, err)
	require.Len(t, without, 1)
	assert.Empty(t, without[0].Content)
}

func fullTextServer(t *testing.T, page http.HandlerFunc) string {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	feedBody := strings.ReplaceAll(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description>
<item><title>Hospitals adopt AI triage tools</title><link>BASE/post</link></item>
</channel></rss>`, "BASE", server.URL)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(feedBody))
	})
	mux.HandleFunc("/post", page)
	return server.URL + "/feed"
}

func TestFetchFullTextExtractsHTMLPage(t *testing.T) {
	t.Parallel()

	const lead = "Regional hospitals are rolling out machine learning models that rank emergency patients by urgency."
	feedURL := fullTextServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<!doctype html><html><head><title>AI triage</title>
<meta name="description" content="` + lead + `"></head>
<body><nav><a href="/">Home</a></nav><article>
<h1>Hospitals adopt AI triage tools</h1>
<p>` + lead + `</p>
<p>Doctors say the tools shorten waiting times, although nurses still review every recommendation before treatment starts.</p>
<p>The rollout follows a year of trials in three clinics where the models were compared against experienced triage staff.</p>
</article><footer>Copyright</footer></body></html>`))
	})

	articles, err := NewFetcher(Options{FullText: true}, zerolog.Nop()).Fetch(context.Background(), feedURL)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Contains(t, articles[0].Content, lead)
	assert.NotContains(t, articles[0].Content, "<p>")
}

func TestFetchFullTextFallsBackToTitle(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"error status": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusGone)
		},
		"empty page": func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
		},
	}
	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			feedURL := fullTextServer(t, page)
			articles, err := NewFetcher(Options{FullText: true}, zerolog.Nop()).Fetch(context.Background(), feedURL)
			require.NoError(t, err)
			require.Len(t, articles, 1)
			assert.Equal(t, "Hospitals adopt AI triage tools", articles[0].Content)
			assert.Equal(t, "Hospitals adopt AI triage tools", articles[0].PostTitle)
		})
	}
}
