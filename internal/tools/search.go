package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// searcher is the subset of the DuckDuckGo client the tool uses.
type searcher interface {
	Call(ctx context.Context, input string) (string, error)
}

// SearchResult is one hit returned by web_search.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
	URL     string `json:"url"`
}

// SearchTool queries DuckDuckGo and returns the hits as JSON so the model
// can pick a URL to hand to read_webpage or browser_snapshot.
type SearchTool struct {
	client     searcher
	maxResults int
}

func NewSearchTool(maxResults int) (*SearchTool, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	ddg, err := duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
	if err != nil {
		return nil, err
	}
	return &SearchTool{client: ddg, maxResults: maxResults}, nil
}

func (s *SearchTool) Name() string {
	return "web_search"
}

func (s *SearchTool) Description() string {
	return "Search the web with DuckDuckGo. Returns a JSON list of results with title, snippet and url."
}

func (s *SearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to look up",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Return at most this many results",
			},
		},
		"required": []string{"query"},
	}
}

func (s *SearchTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query      string `json:"query"`
		MaxResults int    `json:"max_results"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query is required")
	}

	raw, err := s.client.Call(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}

	results := parseSearchResults(raw)
	if len(results) == 0 {
		// Unrecognised layout; the text is still useful to the model.
		return raw, nil
	}
	limit := s.maxResults
	if args.MaxResults > 0 && (limit <= 0 || args.MaxResults < limit) {
		limit = args.MaxResults
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out, err := json.Marshal(struct {
		Query   string         `json:"query"`
		Results []SearchResult `json:"results"`
	}{args.Query, results})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// parseSearchResults reads the "Title:/Description:/URL:" blocks the
// DuckDuckGo client writes, one block per hit.
func parseSearchResults(raw string) []SearchResult {
	var results []SearchResult
	var cur SearchResult
	flush := func() {
		if cur.Title != "" && cur.URL != "" {
			results = append(results, cur)
		}
		cur = SearchResult{}
	}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Title:"):
			flush()
			cur.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Description:"):
			cur.Snippet = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		case strings.HasPrefix(line, "URL:"):
			cur.URL = strings.TrimSpace(strings.TrimPrefix(line, "URL:"))
		}
	}
	flush()
	return results
}
