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

// Package pipeline wires validation, memory, the tree search, final
// synthesis, and persistence into the one operation the service
// exposes: generate educational material for a query.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/memory"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/storage"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tot"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/validation"
)

// Request is one generation request.
type Request struct {
	Query     string
	UserID    string
	UserLevel string
}

// Material is the generated educational artifact plus the search
// telemetry a caller may want to display.
type Material struct {
	ID           string
	SessionID    string
	Query        string
	Category     string
	Content      string
	Sources      []document.Document
	Completeness float64
	Iterations   int
	ToolsUsed    []string
	Elapsed      time.Duration
	ModelCalls   map[model.Tier]int
}

// Options are the generator's collaborators. Store may be nil (no
// relational logging).
type Options struct {
	Validator    *validation.Validator
	Memory       *memory.Manager
	Orchestrator *tot.Orchestrator
	Router       *model.Router
	Store        *storage.Store
}

// Generator runs the end-to-end flow.
type Generator struct {
	cfg          *config.Config
	validator    *validation.Validator
	memory       *memory.Manager
	orchestrator *tot.Orchestrator
	router       *model.Router
	store        *storage.Store
}

// New creates a generator.
func New(cfg *config.Config, opts Options) *Generator {
	return &Generator{
		cfg:          cfg,
		validator:    opts.Validator,
		memory:       opts.Memory,
		orchestrator: opts.Orchestrator,
		router:       opts.Router,
		store:        opts.Store,
	}
}

// Generate validates the query, searches the reasoning tree, and
// synthesizes the final material. Persistence is write-through:
// storage failures are logged and never fail the request.
func (g *Generator) Generate(ctx context.Context, req Request) (*Material, error) {
	start := time.Now()
	if req.UserLevel == "" {
		req.UserLevel = "beginner"
	}

	if err := g.validator.Validate(ctx, req.Query); err != nil {
		return nil, err
	}

	mc := g.memory.LoadContext(ctx, req.UserID, req.Query)
	ctx = model.WithRecorder(ctx, model.NewCallRecorder())

	res, err := g.orchestrator.Search(ctx, req.Query, req.UserLevel, mc)
	if err != nil {
		return nil, err
	}

	content := g.synthesize(ctx, req, res)

	material := &Material{
		ID:           uuid.NewString(),
		SessionID:    mc.SessionID,
		Query:        req.Query,
		Category:     mc.Category,
		Content:      content,
		Sources:      res.Collected,
		Completeness: res.FinalCompleteness,
		Iterations:   res.Iterations,
		ToolsUsed:    res.ToolsUsed,
		Elapsed:      time.Since(start),
		ModelCalls:   res.ModelCalls,
	}

	g.persist(ctx, material, res)

	pattern, err := g.memory.SaveSuccessfulGeneration(ctx, memory.Generation{
		SessionID:    mc.SessionID,
		Query:        req.Query,
		UserLevel:    req.UserLevel,
		Category:     mc.Category,
		Completeness: res.FinalCompleteness,
		ToolSequence: pathTools(res.BestPath),
		Thoughts:     pathThoughts(res.BestPath),
		Iterations:   res.Iterations,
	})
	switch {
	case err != nil:
		slog.Warn("procedural save skipped", "session_id", mc.SessionID, "error", err)
	case pattern != nil && g.store != nil:
		// mirror the pattern into the relational store under the same
		// id so it survives a vector backend loss
		if err := g.store.SavePattern(ctx, storage.PatternRecord{
			ID:           pattern.ID,
			Query:        pattern.Query,
			Category:     pattern.Category,
			Approach:     pattern.Approach,
			SuccessScore: pattern.SuccessScore,
			UsageCount:   pattern.UsageCount,
		}); err != nil {
			slog.Warn("pattern row not written", "pattern_id", pattern.ID, "error", err)
		}
	}

	return material, nil
}

// synthesize asks the expensive model to write the material from the
// collected evidence. It may use the full remaining request deadline.
// When the model is unavailable the material degrades to a plain
// assembly of the strongest evidence.
func (g *Generator) synthesize(ctx context.Context, req Request, res *tot.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb,
		"Write educational material in Russian answering the question below for a %s-level student. "+
			"Base the answer strictly on the provided evidence.\n\nQuestion: %s\n\nEvidence:\n",
		req.UserLevel, req.Query)
	for i, d := range topDocuments(res.Collected, 8) {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, d.Source, truncateRunes(d.Content, 1500))
	}

	opts := []model.InvokeOption{}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, model.WithTimeout(time.Until(deadline)))
	}

	content, err := g.router.Invoke(ctx, model.TaskFinalSynthesis, sb.String(), opts...)
	if err != nil {
		slog.Warn("final synthesis unavailable, assembling evidence directly", "error", err)
		return assembleFallback(req.Query, res.Collected)
	}
	return content
}

// persist writes the generation trail. Every failure is logged, none
// is fatal.
func (g *Generator) persist(ctx context.Context, material *Material, res *tot.Result) {
	if g.store == nil {
		return
	}

	if err := g.store.SaveGeneration(ctx, storage.GenerationRecord{
		ID:           material.ID,
		Query:        material.Query,
		Category:     material.Category,
		Material:     material.Content,
		Completeness: material.Completeness,
		Iterations:   material.Iterations,
		Duration:     res.Elapsed,
	}); err != nil {
		slog.Warn("generation row not written", "generation_id", material.ID, "error", err)
	}

	nodes := make([]storage.NodeRecord, 0, len(res.Explored))
	for _, n := range res.Explored {
		nodes = append(nodes, storage.NodeRecord{
			GenerationID: material.ID,
			NodeID:       n.ID,
			ParentID:     n.ParentID,
			Depth:        n.Depth,
			Thought:      n.Thought,
			Tool:         n.ToolName,
			Status:       string(n.Status),
			Promise:      n.Promise,
			Relevance:    n.Relevance,
			Quality:      n.Quality,
			Completeness: n.Completeness,
		})
	}
	if err := g.store.SaveNodes(ctx, nodes); err != nil {
		slog.Warn("node logs not written", "generation_id", material.ID, "error", err)
	}

	for _, n := range res.Explored {
		if n.ToolResult == nil {
			continue
		}
		if err := g.store.BumpToolUsage(ctx, n.ToolName, !n.ToolResult.Success, n.ToolResult.Duration); err != nil {
			slog.Warn("tool usage not written", "tool", n.ToolName, "error", err)
		}
	}

	for stage, filtered := range res.GuardFiltered {
		if filtered == 0 {
			continue
		}
		if err := g.store.SaveGuardLog(ctx, storage.GuardRecord{
			GenerationID: material.ID,
			Stage:        stage,
			Filtered:     filtered,
		}); err != nil {
			slog.Warn("guard log not written", "stage", stage, "error", err)
		}
	}
}

// pathTools lists the tools along the best path, root excluded.
func pathTools(path []*tot.TreeNode) []string {
	var tools []string
	for _, n := range path {
		if n.ToolName != "" {
			tools = append(tools, n.ToolName)
		}
	}
	return tools
}

func pathThoughts(path []*tot.TreeNode) []string {
	var thoughts []string
	for _, n := range path {
		if n.Thought != "" {
			thoughts = append(thoughts, n.Thought)
		}
	}
	return thoughts
}

// topDocuments returns up to n documents, highest relevance first;
// untouched order for equal scores.
func topDocuments(docs []document.Document, n int) []document.Document {
	sorted := make([]document.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RelevanceScore > sorted[j].RelevanceScore
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func assembleFallback(query string, docs []document.Document) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Материалы по запросу «%s»:\n\n", query)
	for i, d := range topDocuments(docs, 5) {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, truncateRunes(d.Content, 800))
	}
	return sb.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
