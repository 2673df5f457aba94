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
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

// fallbackRelevance is assigned when both batch and per-document
// scoring fail.
const fallbackRelevance = 0.5

// CorrectiveParams are the corrective_check inputs.
type CorrectiveParams struct {
	Query            string              `mapstructure:"query" json:"query" jsonschema:"required,description=Original query the documents should answer"`
	Documents        []document.Document `mapstructure:"documents" json:"documents" jsonschema:"description=Documents to score and filter"`
	MinRelevance     float64             `mapstructure:"min_relevance" json:"min_relevance,omitempty" jsonschema:"description=Relevance floor in [0 1]"`
	EvaluateCoverage bool                `mapstructure:"evaluate_coverage" json:"evaluate_coverage,omitempty" jsonschema:"description=Also compute concept coverage"`
}

// CorrectiveTool scores retrieved documents against the query with the
// cheap model and drops the ones below the relevance floor.
type CorrectiveTool struct {
	cfg    config.CorrectiveConfig
	router *model.Router
}

// NewCorrectiveTool creates the tool.
func NewCorrectiveTool(cfg config.CorrectiveConfig, router *model.Router) *CorrectiveTool {
	return &CorrectiveTool{cfg: cfg, router: router}
}

// Name returns "corrective_check".
func (t *CorrectiveTool) Name() string { return "corrective_check" }

// Description returns the catalog line.
func (t *CorrectiveTool) Description() string {
	return "Scores documents for relevance to the query and filters out weak ones"
}

// Parameters returns the params schema.
func (t *CorrectiveTool) Parameters() map[string]any {
	return schemaFor(&CorrectiveParams{})
}

// Execute scores in batches, falling back to per-document scoring and
// finally to a neutral default, then filters below min_relevance.
func (t *CorrectiveTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p CorrectiveParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if p.Query == "" {
		return Failure("tool_execution: query is required", start)
	}
	if len(p.Documents) == 0 {
		return Successful(nil, map[string]any{"scored": 0, "filtered": 0}, start)
	}
	if p.MinRelevance == 0 {
		p.MinRelevance = t.cfg.MinRelevance
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(t.cfg.TimeoutS)*time.Second)
	defer cancel()

	scores := t.scoreAll(ctx, p.Query, p.Documents)

	kept := make([]document.Document, 0, len(p.Documents))
	for i, doc := range p.Documents {
		if scores[i] < p.MinRelevance {
			continue
		}
		doc.RelevanceScore = scores[i]
		kept = append(kept, doc)
	}

	metadata := map[string]any{
		"scored":   len(p.Documents),
		"filtered": len(p.Documents) - len(kept),
	}
	if p.EvaluateCoverage {
		metadata["concept_coverage"] = conceptCoverage(p.Query, kept)
	}
	return Successful(kept, metadata, start)
}

// scoreAll returns one relevance per document, batch first.
func (t *CorrectiveTool) scoreAll(ctx context.Context, query string, docs []document.Document) []float64 {
	scores := make([]float64, len(docs))
	batchSize := t.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for lo := 0; lo < len(docs); lo += batchSize {
		hi := lo + batchSize
		if hi > len(docs) {
			hi = len(docs)
		}
		batch := docs[lo:hi]

		batchScores, err := t.scoreBatch(ctx, query, batch)
		if err != nil {
			slog.Warn("batch relevance scoring failed, scoring per document", "error", err)
			for i, doc := range batch {
				score, err := t.scoreOne(ctx, query, doc)
				if err != nil {
					score = fallbackRelevance
				}
				scores[lo+i] = score
			}
			continue
		}
		copy(scores[lo:hi], batchScores)
	}
	return scores
}

func (t *CorrectiveTool) scoreBatch(ctx context.Context, query string, docs []document.Document) ([]float64, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Rate how relevant each document is to the query %q on a 0..1 scale.\n", query)
	sb.WriteString("Reply with only a JSON array of numbers, one per document, in order.\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "Document %d:\n%s\n\n", i+1, snippet(doc.Content, 500))
	}

	reply, err := t.router.Invoke(ctx, model.TaskRelevanceScoring, sb.String())
	if err != nil {
		return nil, err
	}

	scores, err := parseScoreArray(reply)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(docs) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(docs), len(scores))
	}
	return scores, nil
}

func (t *CorrectiveTool) scoreOne(ctx context.Context, query string, doc document.Document) (float64, error) {
	prompt := fmt.Sprintf(
		"Rate how relevant this document is to the query %q on a 0..1 scale. Reply with only the number.\n\n%s",
		query, snippet(doc.Content, 500))

	reply, err := t.router.Invoke(ctx, model.TaskRelevanceScoring, prompt)
	if err != nil {
		return 0, err
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(firstLine(reply)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable score %q: %w", reply, err)
	}
	return clamp01(score), nil
}

// conceptCoverage is the fraction of domain vocabulary terms in the
// query that also appear across the surviving documents.
func conceptCoverage(query string, docs []document.Document) float64 {
	queryTerms := vocabularyTermsIn(query)
	if len(queryTerms) == 0 {
		return 0
	}

	var combined strings.Builder
	for _, doc := range docs {
		combined.WriteString(strings.ToLower(doc.Content))
		combined.WriteByte('\n')
	}
	text := combined.String()

	covered := 0
	for _, term := range queryTerms {
		if strings.Contains(text, term) {
			covered++
		}
	}
	return float64(covered) / float64(len(queryTerms))
}

// parseScoreArray extracts a JSON number array from a model reply,
// tolerating code fences and surrounding prose.
func parseScoreArray(reply string) ([]float64, error) {
	open := strings.Index(reply, "[")
	close_ := strings.LastIndex(reply, "]")
	if open < 0 || close_ <= open {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var scores []float64
	if err := json.Unmarshal([]byte(reply[open:close_+1]), &scores); err != nil {
		return nil, fmt.Errorf("bad score array: %w", err)
	}
	for i := range scores {
		scores[i] = clamp01(scores[i])
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func snippet(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var _ Tool = (*CorrectiveTool)(nil)
