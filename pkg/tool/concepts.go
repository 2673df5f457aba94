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
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
)

const jaccardDedupThreshold = 0.85

// capitalizedPhrase matches runs of capitalized words, Latin or
// Cyrillic, e.g. "Binary Search Tree" or "Алгоритм Дейкстры".
var capitalizedPhrase = regexp.MustCompile(`(?:[A-ZА-ЯЁ][a-zа-яё\-]+)(?:\s+[A-ZА-ЯЁ][a-zа-яё\-]+)*`)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "are": true, "was": true, "has": true, "have": true,
	"from": true, "not": true, "you": true, "can": true, "its": true,
	"или": true, "это": true, "как": true, "для": true, "что": true,
	"при": true, "его": true, "она": true, "они": true, "быть": true,
}

// ConceptParams are the concept_extractor inputs.
type ConceptParams struct {
	Text   string `mapstructure:"text" json:"text" jsonschema:"required,description=Text to extract key phrases from"`
	Method string `mapstructure:"method" json:"method,omitempty" jsonschema:"enum=auto,enum=keybert,enum=spacy,enum=hybrid,enum=heuristic,description=Extraction method"`
	TopN   int    `mapstructure:"top_n" json:"top_n,omitempty" jsonschema:"description=Maximum phrases to return"`
}

// ConceptExtractorTool produces a ranked list of key phrases. Method
// names mirror the original service's config surface: "keybert" ranks
// candidate phrases by embedding similarity to the text, "spacy" is a
// linguistic heuristic (vocabulary scan plus capitalized phrases).
type ConceptExtractorTool struct {
	embedder embedder.Embedder
}

// NewConceptExtractorTool creates the tool. emb may be nil; embedding
// methods then degrade to the heuristic.
func NewConceptExtractorTool(emb embedder.Embedder) *ConceptExtractorTool {
	return &ConceptExtractorTool{embedder: emb}
}

// Name returns "concept_extractor".
func (t *ConceptExtractorTool) Name() string { return "concept_extractor" }

// Description returns the catalog line.
func (t *ConceptExtractorTool) Description() string {
	return "Extracts ranked key concepts from text"
}

// Parameters returns the params schema.
func (t *ConceptExtractorTool) Parameters() map[string]any {
	return schemaFor(&ConceptParams{})
}

// Execute extracts phrases with the selected method.
func (t *ConceptExtractorTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p ConceptParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if strings.TrimSpace(p.Text) == "" {
		return Failure("tool_execution: text is required", start)
	}
	if p.TopN <= 0 {
		p.TopN = 10
	}
	method := p.Method
	if method == "" {
		method = "auto"
	}

	phrases, used, err := t.extract(ctx, method, p.Text, p.TopN)
	if err != nil {
		return Failure(fmt.Sprintf("tool_execution: %v", err), start)
	}

	docs := make([]document.Document, 0, len(phrases))
	for rank, phrase := range phrases {
		docs = append(docs, document.Document{
			Content: phrase,
			Source:  "concept_extractor",
			Metadata: map[string]any{
				"rank":   fmt.Sprintf("%d", rank+1),
				"method": used,
			},
		})
	}
	return Successful(docs, map[string]any{
		"method":  used,
		"phrases": len(phrases),
	}, start)
}

func (t *ConceptExtractorTool) extract(ctx context.Context, method, text string, topN int) ([]string, string, error) {
	switch method {
	case "auto":
		if t.embedder != nil {
			phrases, err := t.keybert(ctx, text, topN)
			if err == nil {
				return phrases, "keybert", nil
			}
		}
		return t.heuristic(text, topN), "heuristic", nil
	case "keybert":
		if t.embedder == nil {
			return t.heuristic(text, topN), "heuristic", nil
		}
		phrases, err := t.keybert(ctx, text, topN)
		if err != nil {
			return t.heuristic(text, topN), "heuristic", nil
		}
		return phrases, "keybert", nil
	case "spacy":
		return t.linguistic(text, topN), "spacy", nil
	case "hybrid":
		return t.hybrid(ctx, text, topN), "hybrid", nil
	case "heuristic":
		return t.heuristic(text, topN), "heuristic", nil
	default:
		return nil, method, fmt.Errorf("unknown method %q", method)
	}
}

// keybert ranks candidate word n-grams by embedding similarity to the
// whole text.
func (t *ConceptExtractorTool) keybert(ctx context.Context, text string, topN int) ([]string, error) {
	candidates := candidatePhrases(text, 40)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate phrases")
	}

	textVec, err := t.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	candidateVecs, err := t.embedder.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to embed candidates: %w", err)
	}

	type scored struct {
		phrase string
		score  float64
	}
	ranked := make([]scored, 0, len(candidates))
	for i, phrase := range candidates {
		ranked = append(ranked, scored{phrase, cosine64(textVec, candidateVecs[i])})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]string, 0, topN)
	for _, s := range ranked {
		out = append(out, s.phrase)
		if len(out) == topN {
			break
		}
	}
	return out, nil
}

// linguistic scans the domain vocabulary, then adds capitalized
// phrases.
func (t *ConceptExtractorTool) linguistic(text string, topN int) []string {
	phrases := vocabularyTermsIn(text)
	for _, match := range capitalizedPhrase.FindAllString(text, -1) {
		if len([]rune(match)) < 4 {
			continue
		}
		phrases = append(phrases, strings.ToLower(match))
	}
	return dedupOrdered(phrases, topN)
}

func (t *ConceptExtractorTool) heuristic(text string, topN int) []string {
	return t.linguistic(text, topN)
}

// hybrid merges keybert and linguistic results with a Jaccard dedup,
// preferring the keybert ordering.
func (t *ConceptExtractorTool) hybrid(ctx context.Context, text string, topN int) []string {
	var primary []string
	if t.embedder != nil {
		if phrases, err := t.keybert(ctx, text, topN); err == nil {
			primary = phrases
		}
	}
	secondary := t.linguistic(text, topN)

	merged := make([]string, 0, topN)
	for _, phrase := range append(primary, secondary...) {
		duplicate := false
		for _, kept := range merged {
			if jaccard(phrase, kept) >= jaccardDedupThreshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, phrase)
		}
		if len(merged) == topN {
			break
		}
	}
	return merged
}

// candidatePhrases produces 1..3-word n-grams without stopword
// boundaries, first-seen order, capped at limit.
func candidatePhrases(text string, limit int) []string {
	words := strings.Fields(strings.ToLower(text))
	cleaned := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]{}\"'«»")
		if len([]rune(w)) < 3 || stopwords[w] {
			cleaned = append(cleaned, "")
			continue
		}
		cleaned = append(cleaned, w)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(phrase string) {
		if phrase == "" || seen[phrase] || len(out) >= limit {
			return
		}
		seen[phrase] = true
		out = append(out, phrase)
	}

	for n := 3; n >= 1; n-- {
		for i := 0; i+n <= len(cleaned); i++ {
			parts := cleaned[i : i+n]
			valid := true
			for _, p := range parts {
				if p == "" {
					valid = false
					break
				}
			}
			if valid {
				add(strings.Join(parts, " "))
			}
		}
	}
	return out
}

// jaccard computes word-set similarity of two phrases.
func jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func dedupOrdered(items []string, limit int) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, limit)
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}

func cosine64(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Tool = (*ConceptExtractorTool)(nil)
