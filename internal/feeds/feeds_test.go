package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meridian/internal/core"
	"meridian/internal/profiles"
)

type memStore struct {
	mu       sync.Mutex
	articles []*core.Article
	existing map[string]bool
}

func newMemStore(existing ...string) *memStore {
	s := &memStore{existing: make(map[string]bool)}
	for _, u := range existing {
		s.existing[u] = true
	}
	return s
}

func (s *memStore) Exists(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[url], nil
}

func (s *memStore) Create(_ context.Context, a *core.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.articles) + 1)
	s.articles = append(s.articles, a)
	s.existing[a.URL] = true
	return nil
}

func (s *memStore) byURL(url string) *core.Article {
	for _, a := range s.articles {
		if a.URL == url {
			return a
		}
	}
	return nil
}

const articleBody = `<p>Go 1.24 ships generic type aliases, a faster map implementation built on Swiss tables,
and a new weak pointer package. The release also improves the performance of cgo calls and adds
directory-scoped filesystem access through os.Root.</p>
<p>Benchmarks across the standard library show a two to three percent reduction in CPU usage for
typical workloads, with map heavy programs gaining considerably more.</p>`

func articlePage(title, ogTitle, ogImage string) string {
	var head strings.Builder
	if title != "" {
		fmt.Fprintf(&head, "<title>%s</title>", title)
	}
	if ogTitle != "" {
		fmt.Fprintf(&head, `<meta property="og:title" content="%s">`, ogTitle)
	}
	if ogImage != "" {
		fmt.Fprintf(&head, `<meta property="og:image" content="%s">`, ogImage)
	}
	return fmt.Sprintf("<html><head>%s</head><body><nav>Home</nav><article>%s</article></body></html>", head.String(), articleBody)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
  <title>Example Tech</title>
  <link>%[1]s</link>
  <item>
    <title>Go 1.24 released</title>
    <link>%[1]s/posts/go</link>
    <pubDate>Tue, 11 Feb 2025 10:00:00 GMT</pubDate>
    <enclosure url="%[1]s/img/go.png" type="image/png" length="100"/>
  </item>
  <item>
    <title>Media item</title>
    <link>%[1]s/posts/media</link>
    <media:content url="%[1]s/img/media.jpg" medium="image"/>
  </item>
  <item>
    <title>Already stored</title>
    <link>%[1]s/posts/old</link>
  </item>
  <item>
    <title>Gone page</title>
    <link>%[1]s/posts/missing</link>
    <description>&lt;p&gt;Only the feed summary survives.&lt;/p&gt;</description>
  </item>
</channel>
</rss>`, srv.URL)
	})
	mux.HandleFunc("/posts/go", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Go 1.24", "", srv.URL+"/img/og.png"))
	})
	mux.HandleFunc("/posts/media", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Media", "", ""))
	})
	mux.HandleFunc("/posts/manual", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("Fallback Title", "Open Graph Title", srv.URL+"/img/og.png"))
	})
	mux.HandleFunc("/posts/plain", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, articlePage("", "", ""))
	})
	mux.HandleFunc("/broken.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestScraper(store ArticleStore) *Scraper {
	return NewScraper(store, Config{}, zerolog.Nop())
}

func TestScrape(t *testing.T) {
	srv := newTestServer(t)
	store := newMemStore(srv.URL + "/posts/old")
	disabled := false

	stats, err := newTestScraper(store).Scrape(context.Background(), core.ProfileTechnology, []profiles.Feed{
		{URL: srv.URL + "/feed.xml", Name: "Example"},
		{URL: srv.URL + "/broken.xml", Name: "Broken"},
		{URL: srv.URL + "/never.xml", Name: "Disabled", Enabled: &disabled},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalFeeds)
	assert.Equal(t, 3, stats.NewArticles)
	assert.Equal(t, 1, stats.Errors, "the unparseable feed")

	goPost := store.byURL(srv.URL + "/posts/go")
	require.NotNil(t, goPost)
	assert.Equal(t, "Go 1.24 released", goPost.Title)
	assert.Equal(t, "Example", goPost.FeedSource)
	assert.Equal(t, core.ProfileTechnology, goPost.FeedProfile)
	assert.Contains(t, goPost.RawContent, "Swiss tables")
	require.NotNil(t, goPost.ImageURL)
	assert.Equal(t, srv.URL+"/img/go.png", *goPost.ImageURL, "feed image wins over og:image")
	assert.Equal(t, 2025, goPost.PublishedDate.Year())

	media := store.byURL(srv.URL + "/posts/media")
	require.NotNil(t, media)
	require.NotNil(t, media.ImageURL)
	assert.Equal(t, srv.URL+"/img/media.jpg", *media.ImageURL)

	missing := store.byURL(srv.URL + "/posts/missing")
	require.NotNil(t, missing)
	assert.Equal(t, "Only the feed summary survives.", missing.RawContent)

	assert.Len(t, store.articles, 3, "stored URLs are skipped")
}

func TestScrape_RespectsItemLimit(t *testing.T) {
	srv := newTestServer(t)
	store := newMemStore()
	scraper := NewScraper(store, Config{MaxArticlesPerFeed: 1}, zerolog.Nop())

	stats, err := scraper.Scrape(context.Background(), core.ProfileTechnology, []profiles.Feed{{URL: srv.URL + "/feed.xml"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.NewArticles)
	assert.Equal(t, "Example Tech", store.articles[0].FeedSource, "feed title is the default source name")
}

func TestScrapeURL(t *testing.T) {
	srv := newTestServer(t)
	store := newMemStore()
	scraper := newTestScraper(store)

	article, err := scraper.ScrapeURL(context.Background(), srv.URL+"/posts/manual", core.ProfileBrasil)
	require.NoError(t, err)
	assert.Equal(t, "Open Graph Title", article.Title)
	assert.Equal(t, "Manual", article.FeedSource)
	assert.Equal(t, core.ProfileBrasil, article.FeedProfile)
	require.NotNil(t, article.ImageURL)
	assert.Equal(t, srv.URL+"/img/og.png", *article.ImageURL)
	assert.NotZero(t, article.ID)

	_, err = scraper.ScrapeURL(context.Background(), srv.URL+"/posts/manual", core.ProfileBrasil)
	assert.ErrorIs(t, err, ErrDuplicate)

	plain, err := scraper.ScrapeURL(context.Background(), srv.URL+"/posts/plain", core.ProfileBrasil)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Article", plain.Title)
	assert.Nil(t, plain.ImageURL)

	_, err = scraper.ScrapeURL(context.Background(), srv.URL+"/posts/nowhere", core.ProfileBrasil)
	assert.Error(t, err)
}

func TestExtractHTML_TitleFallback(t *testing.T) {
	page, err := ExtractHTML([]byte(articlePage("Plain Title", "", "")), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "Plain Title", page.Title)
	assert.Contains(t, page.Text, "weak pointer")

	_, err = ExtractHTML([]byte("<html><body></body></html>"), "https://example.com/empty")
	assert.Error(t, err)
}

func TestItemImage(t *testing.T) {
	assert.Equal(t, "", ItemImage(&gofeed.Item{}))
	assert.Equal(t, "https://x/i.png", ItemImage(&gofeed.Item{Image: &gofeed.Image{URL: "https://x/i.png"}}))
	assert.Equal(t, "https://x/e.jpg", ItemImage(&gofeed.Item{
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://x/audio.mp3", Type: "audio/mpeg"},
			{URL: "https://x/e.jpg", Type: "image/jpeg"},
		},
		Image: &gofeed.Image{URL: "https://x/i.png"},
	}))
}
