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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/httpclient"
)

// WebSearchParams are the web_search inputs.
type WebSearchParams struct {
	Query         string `mapstructure:"query" json:"query" jsonschema:"required,description=Search query"`
	NumResults    int    `mapstructure:"num_results" json:"num_results,omitempty" jsonschema:"description=Maximum results to return"`
	ScrapeContent bool   `mapstructure:"scrape_content" json:"scrape_content,omitempty" jsonschema:"description=Fetch full page text for each hit"`
}

type searxResponse struct {
	Web []searxHit `json:"web"`
}

type searxHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebSearchTool queries a SearXNG-style metasearch instance, filters
// and prioritizes hits by domain, and optionally hands the URLs to
// the scraper for full text.
type WebSearchTool struct {
	cfg     config.WebSearchConfig
	client  *httpclient.Client
	scraper *WebScraperTool
}

// NewWebSearchTool creates the tool. scraper may be nil, in which case
// scrape_content silently degrades to snippets.
func NewWebSearchTool(cfg config.WebSearchConfig, scraper *WebScraperTool) *WebSearchTool {
	return &WebSearchTool{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.TimeoutS) * time.Second,
			}),
			httpclient.WithMaxRetries(cfg.RetryCount),
		),
		scraper: scraper,
	}
}

// Name returns "web_search".
func (t *WebSearchTool) Name() string { return "web_search" }

// Description returns the catalog line.
func (t *WebSearchTool) Description() string {
	return "Searches the web through a metasearch mirror, preferring educational domains"
}

// Parameters returns the params schema.
func (t *WebSearchTool) Parameters() map[string]any {
	return schemaFor(&WebSearchParams{})
}

// Execute queries the primary mirror, then the fallbacks in order.
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p WebSearchParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if p.Query == "" {
		return Failure("tool_execution: query is required", start)
	}
	if p.NumResults <= 0 {
		p.NumResults = t.cfg.ResultsLimit
	}

	mirrors := append([]string{t.cfg.BaseURL}, t.cfg.FallbackURLs...)
	var hits []searxHit
	var lastErr error
	usedMirror := ""
	for _, mirror := range mirrors {
		if mirror == "" {
			continue
		}
		found, err := t.query(ctx, mirror, p.Query)
		if err != nil {
			lastErr = err
			slog.Warn("metasearch mirror failed", "mirror", mirror, "error", err)
			continue
		}
		hits = found
		usedMirror = mirror
		break
	}
	if usedMirror == "" {
		return Failure(fmt.Sprintf("search_failed: all mirrors failed: %v", lastErr), start)
	}

	hits = t.filterAndSort(hits)
	if len(hits) > p.NumResults {
		hits = hits[:p.NumResults]
	}

	metadata := map[string]any{
		"mirror":    usedMirror,
		"hit_count": len(hits),
	}

	if p.ScrapeContent && t.scraper != nil && len(hits) > 0 {
		urls := make([]string, len(hits))
		for i, h := range hits {
			urls[i] = h.URL
		}
		scraped := t.scraper.Scrape(ctx, urls)
		if len(scraped) > 0 {
			metadata["scraped"] = len(scraped)
			return Successful(scraped, metadata, start)
		}
		// scraping produced nothing usable; snippets still have value
		slog.Warn("scraping returned no documents, falling back to snippets")
	}

	docs := make([]document.Document, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, document.Document{
			Content: strings.TrimSpace(h.Title + "\n" + h.Description),
			Source:  h.URL,
			Metadata: map[string]any{
				"origin": "web_search",
				"title":  h.Title,
			},
		})
	}
	return Successful(docs, metadata, start)
}

func (t *WebSearchTool) query(ctx context.Context, mirror, query string) ([]searxHit, error) {
	endpoint := fmt.Sprintf("%s/api/v1/web?s=%s&nsfw=no",
		strings.TrimRight(mirror, "/"), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return parsed.Web, nil
}

// filterAndSort drops blacklisted domains and orders hits by domain
// priority weight, stable within equal weights.
func (t *WebSearchTool) filterAndSort(hits []searxHit) []searxHit {
	kept := make([]searxHit, 0, len(hits))
	for _, h := range hits {
		if h.URL == "" || t.blacklisted(h.URL) {
			continue
		}
		kept = append(kept, h)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return t.priority(kept[i].URL) > t.priority(kept[j].URL)
	})
	return kept
}

func (t *WebSearchTool) blacklisted(rawURL string) bool {
	host := hostOf(rawURL)
	for _, banned := range t.cfg.Blacklist {
		if banned != "" && strings.Contains(host, banned) {
			return true
		}
	}
	return false
}

// priority returns the best matching weight for the hit's host. Keys
// match either the TLD or a substring of the host ("wikipedia").
func (t *WebSearchTool) priority(rawURL string) float64 {
	host := hostOf(rawURL)
	best := 0.0
	for key, weight := range t.cfg.Priorities {
		if strings.HasSuffix(host, "."+key) || strings.Contains(host, key) {
			if weight > best {
				best = weight
			}
		}
	}
	return best
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Host)
}

var _ Tool = (*WebSearchTool)(nil)
