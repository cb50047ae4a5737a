package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/GianmarcoBramucci/my-first-chatbot/pkg/logger"
)

// NoResultsMessage is the fixed fallback surfaced when the search yields
// zero usable results. The pipeline returns it as answer content instead
// of an error.
const NoResultsMessage = "Nessun risultato trovato su Internet"

type Client struct {
	serpAPIKey  string
	maxResults  int
	pageCharCap int
	httpClient  *http.Client
}

type SearchResult struct {
	Title   string
	URL     string
	Snippet string
	Content string
}

func NewClient(serpAPIKey string, maxResults, timeoutSec, pageCharCap int) *Client {
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	if pageCharCap <= 0 {
		pageCharCap = 2000
	}

	return &Client{
		serpAPIKey:  serpAPIKey,
		maxResults:  maxResults,
		pageCharCap: pageCharCap,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	logger.Info("Performing web search", zap.String("query", query))

	if c.serpAPIKey != "" {
		return c.searchWithSerpAPI(ctx, query)
	}

	return c.searchWithGoogle(ctx, query)
}

func (c *Client) searchWithSerpAPI(ctx context.Context, query string) ([]SearchResult, error) {
	baseURL := "https://serpapi.com/search"
	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.serpAPIKey)
	params.Add("num", fmt.Sprintf("%d", c.maxResults))

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", baseURL, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}

	err = json.Unmarshal(body, &searchResp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResp.OrganicResults))
	for _, r := range searchResp.OrganicResults {
		if len(results) >= c.maxResults {
			break
		}

		content, err := c.fetchPage(ctx, r.Link)
		if err != nil {
			logger.Warn("Failed to fetch page content", zap.String("url", r.Link), zap.Error(err))
			content = r.Snippet
		}

		results = append(results, SearchResult{
			Title:   r.Title,
			URL:     r.Link,
			Snippet: r.Snippet,
			Content: content,
		})
	}

	logger.Info("Web search completed", zap.Int("results", len(results)))

	return results, nil
}

func (c *Client) searchWithGoogle(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("https://www.google.com/search?q=%s&num=%d", url.QueryEscape(query), c.maxResults)

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	results := make([]SearchResult, 0)
	doc.Find("div.g").Each(func(i int, s *goquery.Selection) {
		if i >= c.maxResults {
			return
		}

		title := s.Find("h3").Text()
		link, _ := s.Find("a").Attr("href")
		snippet := s.Find("div.VwiC3b").Text()

		if title != "" && link != "" {
			content, err := c.fetchPage(ctx, link)
			if err != nil {
				content = snippet
			}

			results = append(results, SearchResult{
				Title:   title,
				URL:     link,
				Snippet: snippet,
				Content: content,
			})
		}
	})

	logger.Info("Google search completed", zap.Int("results", len(results)))

	return results, nil
}

// fetchPage extracts the page text, truncated to the configured cap so a
// single long page cannot blow up the composition prompt.
func (c *Client) fetchPage(ctx context.Context, urlStr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	doc.Find("script, style, nav, footer, header").Remove()
	text := strings.TrimSpace(doc.Find("body").Text())

	return truncateText(text, c.pageCharCap), nil
}

// truncateText cuts text to at most limit bytes without splitting a
// multi-byte UTF-8 rune.
func truncateText(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	return text[:cut]
}

// FormatResults renders search results for the composition prompt. Zero
// results render the fixed no-results message.
func FormatResults(results []SearchResult) string {
	if len(results) == 0 {
		return NoResultsMessage
	}

	var builder strings.Builder
	for i, r := range results {
		if i > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(fmt.Sprintf("[%d] %s\n%s\n%s", i+1, r.Title, r.URL, r.Content))
	}

	return builder.String()
}
