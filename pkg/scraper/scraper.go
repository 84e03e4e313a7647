// Package scraper crawls medical reference sites into corpus documents.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/corpus"
	"github.com/xhad/medilex/pkg/logging"
	"golang.org/x/time/rate"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	UserAgent         string
	OnProgress        func(url string)
	Logger            *zerolog.Logger
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
	logger   zerolog.Logger

	mu      sync.Mutex
	visited map[string]bool
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 2
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	if config.UserAgent == "" {
		config.UserAgent = "medilex-ingest/1.0"
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, err
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsedURL.Scheme)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		logger:   logging.Or(config.Logger, "scraper"),
	}, nil
}

func New(baseURL string) (*Scraper, error) {
	return NewWithConfig(ScraperConfig{BaseURL: baseURL})
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsedURL.Host != s.baseHost {
		return false
	}

	// "" allows extensionless paths, "/" allows directory paths
	p := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		switch allowedExt {
		case "":
			validExt = path.Ext(p) == ""
		default:
			validExt = strings.HasSuffix(p, allowedExt)
		}
		if validExt {
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}

	return true
}

// markVisited reports whether urlStr was new.
func (s *Scraper) markVisited(urlStr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[urlStr] {
		return false
	}
	s.visited[urlStr] = true
	return true
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
	"Skip to main content",
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}

// extractMainContent returns the page's main text with one paragraph per block
// element, so the chunker can split on paragraph boundaries.
func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	selectors := []string{
		"main",
		"article",
		"[role=main]",
		".content",
		"#content",
		"#mw-content-text",
	}

	root := doc.Find("body")
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			root = selected.First()
			break
		}
	}

	var paragraphs []string
	root.Find("h1, h2, h3, h4, p, li, dd, td").Each(func(_ int, sel *goquery.Selection) {
		// nested blocks are picked up on their own
		if sel.Is("li") && sel.Find("p, li").Length() > 0 {
			return
		}
		if text := cleanContent(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return cleanContent(root.Text())
	}
	return strings.Join(paragraphs, "\n\n")
}

// Scrape crawls from startURL, staying on the base host, up to MaxDepth links deep.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	var documents []models.Document
	err := s.scrapeRecursive(ctx, startURL, 0, &documents)
	return documents, err
}

func (s *Scraper) scrapeRecursive(ctx context.Context, urlStr string, depth int, documents *[]models.Document) error {
	if depth > s.config.MaxDepth {
		return nil
	}
	if !s.shouldProcessURL(urlStr) || !s.markVisited(urlStr) {
		return nil
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	// collect links before extraction strips nav elements
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		if abs, ok := resolve(urlStr, href); ok {
			links = append(links, abs)
		}
	})

	content := extractMainContent(doc)
	if content != "" {
		*documents = append(*documents, models.Document{
			ID:      corpus.DocumentID(urlStr),
			URL:     urlStr,
			Title:   title,
			Content: content,
			Metadata: map[string]interface{}{
				"source":       urlStr,
				"depth":        depth,
				"time":         time.Now().UTC().Format(time.RFC3339),
				"contentType":  resp.Header.Get("Content-Type"),
				"lastModified": resp.Header.Get("Last-Modified"),
			},
		})
	}

	for _, link := range links {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.scrapeRecursive(ctx, link, depth+1, documents); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn().Err(err).Str("url", link).Msg("error scraping URL")
		}
	}

	return nil
}

// resolve makes href absolute against base and drops the fragment.
func resolve(base, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	abs := baseURL.ResolveReference(ref)
	abs.Fragment = ""
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}
