package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxPageText = 50000

// ScraperTool fetches a page and reduces it to its readable text.
type ScraperTool struct {
	UserAgent string
	Client    *http.Client
}

func NewScraperTool() *ScraperTool {
	return &ScraperTool{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ScraperTool) Name() string {
	return "read_webpage"
}

func (s *ScraperTool) Description() string {
	return "Fetch a webpage URL and extract the main content as clean, sanitized text."
}

func (s *ScraperTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The full URL of the webpage (e.g., https://example.com/article)",
			},
		},
		"required": []string{"url"},
	}
}

func (s *ScraperTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}

	parsedURL, err := url.Parse(args.URL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %q", args.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}

	return articleText(resp.Body, parsedURL)
}

// articleText runs readability over an HTML document and sanitizes the result.
func articleText(r io.Reader, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %v", err)
	}

	sanitized := bluemonday.StrictPolicy().Sanitize(article.TextContent)

	var sb strings.Builder
	fmt.Fprintf(&sb, "TITLE: %s\n", article.Title)
	if article.Excerpt != "" {
		fmt.Fprintf(&sb, "EXCERPT: %s\n", article.Excerpt)
	}
	sb.WriteString("\n-- CONTENT --\n")
	sb.WriteString(truncate(strings.TrimSpace(sanitized), maxPageText))
	return sb.String(), nil
}
