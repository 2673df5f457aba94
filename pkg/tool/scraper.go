// Copyright 2025 ZUB3C
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

// ScrapeParams are the web_scraper inputs.
type ScrapeParams struct {
	URLs     []string `mapstructure:"urls" json:"urls" jsonschema:"required,description=Pages to fetch"`
	TimeoutS int      `mapstructure:"timeout_s" json:"timeout_s,omitempty" jsonschema:"description=Per-request timeout in seconds"`
}

// WebScraperTool fetches pages in bounded concurrent batches and
// extracts readable text from prioritized content containers.
type WebScraperTool struct {
	cfg     config.WebScraperConfig
	client  *http.Client
	uaIndex atomic.Uint64
}

// NewWebScraperTool creates the tool.
func NewWebScraperTool(cfg config.WebScraperConfig) *WebScraperTool {
	return &WebScraperTool{
		cfg: cfg,
		// per-fetch deadlines come from the request contexts
		client: &http.Client{},
	}
}

// Name returns "web_scraper".
func (t *WebScraperTool) Name() string { return "web_scraper" }

// Description returns the catalog line.
func (t *WebScraperTool) Description() string {
	return "Fetches web pages and extracts their main text content"
}

// Parameters returns the params schema.
func (t *WebScraperTool) Parameters() map[string]any {
	return schemaFor(&ScrapeParams{})
}

// Execute scrapes the URLs; per-URL failures are skipped, and the
// result fails only when every URL failed.
func (t *WebScraperTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p ScrapeParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if len(p.URLs) == 0 {
		return Failure("tool_execution: urls are required", start)
	}

	docs := t.Scrape(ctx, p.URLs)
	if len(docs) == 0 {
		return Failure("tool_execution: no page could be scraped", start)
	}
	return Successful(docs, map[string]any{
		"requested": len(p.URLs),
		"scraped":   len(docs),
	}, start)
}

// Scrape fetches the URLs with bounded concurrency and returns the
// documents that could be extracted, in input order.
func (t *WebScraperTool) Scrape(ctx context.Context, urls []string) []document.Document {
	limit := t.cfg.BatchSize
	if limit <= 0 {
		limit = 5
	}

	results := make([]*document.Document, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, rawURL := range urls {
		g.Go(func() error {
			doc, err := t.scrapeOne(gctx, rawURL)
			if err != nil {
				slog.Debug("failed to scrape page", "url", rawURL, "error", err)
				return nil
			}
			mu.Lock()
			results[i] = doc
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	docs := make([]document.Document, 0, len(urls))
	for _, doc := range results {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs
}

// scrapeOne fetches a page, retrying once at the extended timeout when
// the first attempt times out.
func (t *WebScraperTool) scrapeOne(ctx context.Context, rawURL string) (*document.Document, error) {
	body, err := t.fetch(ctx, rawURL, time.Duration(t.cfg.TimeoutS)*time.Second)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		body, err = t.fetch(ctx, rawURL, time.Duration(t.cfg.ExtendedTimeoutS)*time.Second)
	}
	if err != nil {
		return nil, err
	}

	text, err := t.extract(body)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("no text content in %s", rawURL)
	}

	return &document.Document{
		Content: text,
		Source:  rawURL,
		Metadata: map[string]any{
			"origin": "web_scraper",
		},
	}, nil
}

func (t *WebScraperTool) fetch(ctx context.Context, rawURL string, timeout time.Duration) (*html.Node, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.nextUserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	node, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return node, nil
}

func (t *WebScraperTool) nextUserAgent() string {
	if len(t.cfg.UserAgents) == 0 {
		return "Mozilla/5.0 (compatible)"
	}
	i := t.uaIndex.Add(1)
	return t.cfg.UserAgents[int(i)%len(t.cfg.UserAgents)]
}

// extract prunes noise tags, then pulls text from the first matching
// content selector, falling back to <body>.
func (t *WebScraperTool) extract(root *html.Node) (string, error) {
	pruneTags(root, t.cfg.RemoveTags)

	var container *html.Node
	for _, selector := range t.cfg.ContentSelectors {
		if node := findBySelector(root, selector); node != nil {
			container = node
			break
		}
	}
	if container == nil {
		container = findElement(root, "body")
	}
	if container == nil {
		return "", fmt.Errorf("document has no body")
	}

	text := collapseWhitespace(textOf(container))
	runes := []rune(text)
	if t.cfg.MaxLength > 0 && len(runes) > t.cfg.MaxLength {
		text = string(runes[:t.cfg.MaxLength])
	}
	return text, nil
}

func pruneTags(n *html.Node, tags []string) {
	banned := make(map[string]bool, len(tags))
	for _, tag := range tags {
		banned[tag] = true
	}
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		child := node.FirstChild
		for child != nil {
			next := child.NextSibling
			if child.Type == html.ElementNode && banned[child.Data] {
				node.RemoveChild(child)
			} else {
				walk(child)
			}
			child = next
		}
	}
	walk(n)
}

// findBySelector supports the three selector shapes in the config:
// element name, "#id" and ".class".
func findBySelector(root *html.Node, selector string) *html.Node {
	switch {
	case strings.HasPrefix(selector, "#"):
		return findByAttr(root, "id", selector[1:])
	case strings.HasPrefix(selector, "."):
		return findByClass(root, selector[1:])
	default:
		return findElement(root, selector)
	}
}

func findElement(root *html.Node, name string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == name {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func findByAttr(root *html.Node, key, value string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key == key && attr.Val == value {
					found = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func findByClass(root *html.Node, class string) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "class" {
					continue
				}
				for _, c := range strings.Fields(attr.Val) {
					if c == class {
						found = n
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var _ Tool = (*WebScraperTool)(nil)
