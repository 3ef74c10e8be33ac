package feeds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// maxPageBytes bounds how much of a page is read for extraction.
const maxPageBytes = 10 << 20

// Page is what the extractor pulls out of one HTML document.
type Page struct {
	Title    string
	Text     string
	ImageURL string
}

var whitespaceRuns = regexp.MustCompile(`\n{3,}`)

// fetchPage downloads a URL and returns the body bytes.
func (s *Scraper) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status code %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", pageURL, err)
	}
	return body, nil
}

// Extract downloads a page and returns its title, main text and lead image.
func (s *Scraper) Extract(ctx context.Context, pageURL string) (Page, error) {
	body, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return Page{}, err
	}
	return ExtractHTML(body, pageURL)
}

// ExtractHTML runs readability over an HTML document, falling back to a
// selector based text walk when readability finds nothing. The title prefers
// og:title over <title>; the image comes from og:image.
func ExtractHTML(body []byte, pageURL string) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("failed to parse html from %s: %w", pageURL, err)
	}

	page := Page{
		Title:    metaContent(doc, "og:title"),
		ImageURL: metaContent(doc, "og:image"),
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("head title").First().Text())
	}

	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("invalid page url %q: %w", pageURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil {
		page.Text = strings.TrimSpace(article.TextContent)
		if page.ImageURL == "" {
			page.ImageURL = article.Image
		}
	}
	if page.Text == "" {
		page.Text = fallbackText(doc)
	}
	if page.Text == "" {
		return page, fmt.Errorf("no readable content in %s", pageURL)
	}
	return page, nil
}

func metaContent(doc *goquery.Document, property string) string {
	content, _ := doc.Find(fmt.Sprintf("meta[property='%s']", property)).First().Attr("content")
	return strings.TrimSpace(content)
}

// fallbackText collects block level text from the most likely content container.
func fallbackText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()

	var text strings.Builder
	collect := func(sel *goquery.Selection) {
		sel.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
			if t := strings.TrimSpace(item.Text()); t != "" {
				text.WriteString(t)
				text.WriteString("\n\n")
			}
		})
	}

	for _, selector := range []string{"article", "main", "[role='main']", ".entry-content", ".post-content", "#content"} {
		collect(doc.Find(selector))
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		collect(doc.Find("body"))
	}

	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text.String(), "\n\n"))
}

// htmlToText strips markup from feed supplied HTML snippets.
func htmlToText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
