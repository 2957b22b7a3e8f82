package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// BrowserTool renders JavaScript-heavy pages in a shared headless Chrome and
// returns their readable text. Use read_webpage for static pages.
type BrowserTool struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	Timeout       time.Duration
}

func NewBrowserTool() *BrowserTool {
	return &BrowserTool{Timeout: 60 * time.Second}
}

func (b *BrowserTool) Name() string {
	return "browser_snapshot"
}

func (b *BrowserTool) Description() string {
	return "Open a URL in a headless browser, let scripts run, and return the rendered page text."
}

func (b *BrowserTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "The URL to open",
			},
			"wait_selector": map[string]any{
				"type":        "string",
				"description": "Optional CSS selector to wait for before reading the page",
			},
		},
		"required": []string{"url"},
	}
}

func (b *BrowserTool) ensureBrowser() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.closeLocked()
		default:
			return b.browserCtx, nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	if err := chromedp.Run(b.browserCtx); err != nil {
		b.closeLocked()
		return nil, err
	}
	return b.browserCtx, nil
}

// Close shuts down the shared browser, if one is running.
func (b *BrowserTool) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
}

func (b *BrowserTool) closeLocked() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

func (b *BrowserTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		URL          string `json:"url"`
		WaitSelector string `json:"wait_selector"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	pageURL, err := url.Parse(args.URL)
	if err != nil || (pageURL.Scheme != "http" && pageURL.Scheme != "https") {
		return "", fmt.Errorf("invalid url: %q", args.URL)
	}

	browserCtx, err := b.ensureBrowser()
	if err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	// Each call gets its own tab so concurrent runs do not share navigation state.
	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{chromedp.Navigate(args.URL)}
	if args.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(args.WaitSelector, chromedp.ByQuery))
	}

	var html string
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", fmt.Errorf("browser action failed: %w", err)
	}
	return articleText(strings.NewReader(html), pageURL)
}
