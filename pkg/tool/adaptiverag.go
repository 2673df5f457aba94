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
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

// comparison markers that push an auto-classified query to hybrid.
var comparisonMarkers = []string{
	"vs", "versus", "сравнение", "сравни", "разница", "отличие", "или",
	"difference", "compare",
}

// AdaptiveRAGParams are the adaptive_rag_search inputs.
type AdaptiveRAGParams struct {
	Query    string `mapstructure:"query" json:"query" jsonschema:"required,description=Search query"`
	Strategy string `mapstructure:"strategy" json:"strategy,omitempty" jsonschema:"enum=auto,enum=tfidf,enum=semantic,enum=hybrid,description=Retrieval strategy"`
	K        int    `mapstructure:"k" json:"k,omitempty" jsonschema:"description=Number of documents to return"`
}

// AdaptiveRAGTool retrieves corpus documents with a per-query strategy:
// keyword-ish short queries go to the tf-idf index, normal questions to
// the vector store, comparison and long queries to a rank-fused hybrid.
type AdaptiveRAGTool struct {
	cfg        config.AdaptiveRAGConfig
	embedder   embedder.Embedder
	provider   vector.Provider
	collection string

	indexOnce sync.Once
	index     *tfidfIndex
}

// NewAdaptiveRAGTool creates the tool. The tf-idf index is loaded
// lazily on first use.
func NewAdaptiveRAGTool(cfg config.AdaptiveRAGConfig, emb embedder.Embedder, provider vector.Provider, collection string) *AdaptiveRAGTool {
	return &AdaptiveRAGTool{
		cfg:        cfg,
		embedder:   emb,
		provider:   provider,
		collection: collection,
	}
}

// Name returns "adaptive_rag_search".
func (t *AdaptiveRAGTool) Name() string { return "adaptive_rag_search" }

// Description returns the catalog line.
func (t *AdaptiveRAGTool) Description() string {
	return "Searches the learning corpus, picking tf-idf, semantic or hybrid retrieval per query"
}

// Parameters returns the params schema.
func (t *AdaptiveRAGTool) Parameters() map[string]any {
	return schemaFor(&AdaptiveRAGParams{})
}

/// Execute runs the retrieval with the strategy fallback chain:
// requested strategy, then semantic, then a failed result.
func (t *AdaptiveRAGTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p AdaptiveRAGParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if p.Query == "" {
		return Failure("tool_execution: query is required", start)
	}
	if p.K <= 0 {
		p.K = t.cfg.DefaultK
	}
	strategy := p.Strategy
	if strategy == "" || strategy == "auto" {
		strategy = t.classify(p.Query)
	}

	docs, used, err := t.retrieve(ctx, strategy, p.Query, p.K)
	if err != nil && strategy != "semantic" {
		slog.Warn("retrieval strategy failed, falling back to semantic",
			"strategy", strategy, "error", err)
		docs, used, err = t.retrieve(ctx, "semantic", p.Query, p.K)
	}
	if err != nil {
		return Failure(fmt.Sprintf("search_failed: %v", err), start)
	}

	return Successful(document.Dedup(docs), map[string]any{
		"strategy": used,
		"k":        p.K,
	}, start)
}

// shortQueryRunes is the character half of the "simple query" rule;
// the word half comes from config.
const shortQueryRunes = 60

// classify applies the deterministic auto-strategy rule.
func (t *AdaptiveRAGTool) classify(query string) string {
	words := strings.Fields(query)
	length := utf8.RuneCountInString(query)
	if len(words) < t.cfg.SimpleThreshold && length < shortQueryRunes {
		return "tfidf"
	}
	lower := strings.ToLower(query)
	for _, marker := range comparisonMarkers {
		for _, w := range strings.Fields(lower) {
			if w == marker {
				return "hybrid"
			}
		}
	}
	if length > t.cfg.ComplexThreshold {
		return "hybrid"
	}
	return "semantic"
}

func (t *AdaptiveRAGTool) retrieve(ctx context.Context, strategy, query string, k int) ([]document.Document, string, error) {
	switch strategy {
	case "tfidf":
		docs, err := t.tfidfSearch(query, k)
		if err != nil {
			// A missing index is expected on fresh installs.
			return nil, strategy, err
		}
		return docs, "tfidf", nil
	case "semantic":
		docs, err := t.semanticSearch(ctx, query, k)
		return docs, "semantic", err
	case "hybrid":
		docs, err := t.hybridSearch(ctx, query, k)
		return docs, "hybrid", err
	default:
		return nil, strategy, fmt.Errorf("unknown strategy %q", strategy)
	}
}

func (t *AdaptiveRAGTool) loadIndex() *tfidfIndex {
	t.indexOnce.Do(func() {
		if t.cfg.TFIDFIndexPath == "" {
			return
		}
		idx, err := loadTFIDFIndex(t.cfg.TFIDFIndexPath)
		if err != nil {
			slog.Warn("tf-idf index unavailable", "path", t.cfg.TFIDFIndexPath, "error", err)
			return
		}
		t.index = idx
	})
	return t.index
}

func (t *AdaptiveRAGTool) tfidfSearch(query string, k int) ([]document.Document, error) {
	idx := t.loadIndex()
	if idx == nil {
		return nil, fmt.Errorf("tf-idf index not loaded")
	}

	hits := idx.search(query, k)
	docs := make([]document.Document, 0, len(hits))
	for _, hit := range hits {
		meta := map[string]any{"retrieval": "tfidf"}
		for k, v := range hit.doc.Metadata {
			meta[k] = v
		}
		docs = append(docs, document.Document{
			Content:        hit.doc.Content,
			Source:         hit.doc.Source,
			Metadata:       meta,
			RelevanceScore: hit.score,
		})
	}
	return docs, nil
}

func (t *AdaptiveRAGTool) semanticSearch(ctx context.Context, query string, k int) ([]document.Document, error) {
	vec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	hits, err := t.provider.Search(ctx, t.collection, vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	docs := make([]document.Document, 0, len(hits))
	for _, hit := range hits {
		meta := map[string]any{"retrieval": "semantic"}
		for key, val := range hit.Metadata {
			if s, ok := val.(string); ok && key != "content" {
				meta[key] = s
			}
		}
		source, _ := hit.Metadata["source"].(string)
		docs = append(docs, document.Document{
			Content:        hit.Content,
			Source:         source,
			Metadata:       meta,
			RelevanceScore: float64(hit.Score),
		})
	}
	return docs, nil
}

// hybridSearch fans out tfidf and semantic with k*2 each and fuses the
// rankings with Reciprocal Rank Fusion. If one list is empty the other
// is returned as-is.
func (t *AdaptiveRAGTool) hybridSearch(ctx context.Context, query string, k int) ([]document.Document, error) {
	var tfidfDocs, semanticDocs []document.Document

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		docs, err := t.tfidfSearch(query, k*2)
		if err != nil {
			// the semantic leg may still serve the query
			slog.Debug("hybrid tfidf leg failed", "error", err)
			return nil
		}
		tfidfDocs = docs
		return nil
	})
	g.Go(func() error {
		docs, err := t.semanticSearch(gctx, query, k*2)
		if err != nil {
			slog.Debug("hybrid semantic leg failed", "error", err)
			return nil
		}
		semanticDocs = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(tfidfDocs) == 0 && len(semanticDocs) == 0 {
		return nil, fmt.Errorf("both hybrid strategies returned nothing")
	}
	if len(tfidfDocs) == 0 {
		return truncateDocs(semanticDocs, k), nil
	}
	if len(semanticDocs) == 0 {
		return truncateDocs(tfidfDocs, k), nil
	}
	return fuseRRF([][]document.Document{tfidfDocs, semanticDocs}, t.cfg.RRFKConstant, k), nil
}

// fuseRRF merges ranked lists with score(d) = sum 1/(C + rank), rank
// starting at 1. Stable for equal fused scores.
func fuseRRF(lists [][]document.Document, c int, k int) []document.Document {
	type fused struct {
		doc   document.Document
		score float64
		order int
	}
	byKey := make(map[string]*fused)
	var ordered []*fused

	for _, list := range lists {
		for rank, doc := range list {
			key := doc.Key()
			entry, ok := byKey[key]
			if !ok {
				entry = &fused{doc: doc, order: len(ordered)}
				byKey[key] = entry
				ordered = append(ordered, entry)
			}
			entry.score += 1.0 / float64(c+rank+1)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].score != ordered[j].score {
			return ordered[i].score > ordered[j].score
		}
		return ordered[i].order < ordered[j].order
	})

	out := make([]document.Document, 0, k)
	for _, entry := range ordered {
		doc := entry.doc
		doc.RelevanceScore = entry.score
		if doc.Metadata == nil {
			doc.Metadata = map[string]any{}
		}
		doc.Metadata["retrieval"] = "hybrid"
		out = append(out, doc)
		if len(out) == k {
			break
		}
	}
	return out
}

func truncateDocs(docs []document.Document, k int) []document.Document {
	if len(docs) > k {
		return docs[:k]
	}
	return docs
}

var _ Tool = (*AdaptiveRAGTool)(nil)
