package metadata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/camphubhq/pipeline/internal/logger"
)

const defaultFetchTimeout = 30 * time.Second

// userAgent identifies pipeline fetches so site operators can distinguish
// them from browser traffic.
const userAgent = "Mozilla/5.0 (compatible; CampHub-Pipeline/1.0)"

// Extractor fetches a page and pulls a display title and description,
// used to enrich discovered URLs that arrive without one.
type Extractor struct {
	logger logger.Logger
	client *http.Client
}

func NewExtractor(log logger.Logger, timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Extractor{
		logger: log,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the URL and extracts a title and description. OpenGraph
// tags win over standard meta tags, which win over the title element.
func (e *Extractor) Fetch(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse HTML: %w", err)
	}

	title := extractTitle(doc)
	description := extractDescription(doc)

	e.logger.Debug("Extracted page metadata",
		logger.String("url", pageURL),
		logger.String("title", title),
	)

	return title, description, nil
}

func extractTitle(doc *goquery.Document) string {
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}
	if ogSite, exists := doc.Find("meta[property='og:site_name']").Attr("content"); exists && ogSite != "" {
		return strings.TrimSpace(ogSite)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists && ogDesc != "" {
		return strings.TrimSpace(ogDesc)
	}
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists && desc != "" {
		return strings.TrimSpace(desc)
	}
	return ""
}
