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

// Package memory implements the two persistence tiers of the agent:
// working memory, the step-by-step trace of an active search session,
// and procedural memory, a cross-session library of reasoning patterns
// that solved similar questions before. Both sit on the vector store;
// both tolerate backend loss by degrading rather than failing the
// request that touched them.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/observability"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

// Context is what a new generation starts with: a fresh session plus
// whatever procedural memory knows about similar questions.
type Context struct {
	SessionID string
	UserID    string
	Category  string
	Patterns  []map[string]any
	Hints     []string
}

// HintText renders the hints as prompt-ready prose, one per line.
func (c *Context) HintText() string {
	return strings.Join(c.Hints, "\n")
}

// Manager ties the two stores together behind the operations the
// pipeline needs.
type Manager struct {
	cfg        config.MemoryConfig
	Working    *WorkingStore
	Procedural *ProceduralStore
}

// NewManager builds both stores over a shared vector backend.
func NewManager(cfg *config.Config, provider vector.Provider, emb embedder.Embedder) *Manager {
	return &Manager{
		cfg:        cfg.Memory,
		Working:    NewWorkingStore(provider, emb, cfg.Vector.WorkingCollection, cfg.Memory.WorkingTTL()),
		Procedural: NewProceduralStore(provider, emb, cfg.Vector.ProceduralCollection),
	}
}

// InstrumentWith attaches metrics to both stores so degrade
// transitions are counted. Without it they are only logged.
func (m *Manager) InstrumentWith(metrics *observability.Metrics) {
	m.Working.metrics = metrics
	m.Procedural.metrics = metrics
}

// LoadContext opens a fresh session and pre-fetches procedural
// patterns relevant to the query. Memory failures leave the context
// empty but never fail the load.
func (m *Manager) LoadContext(ctx context.Context, userID, query string) *Context {
	mc := &Context{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Category:  InferCategory(query),
	}

	patterns, err := m.Procedural.FindSimilarPatterns(ctx, query,
		m.cfg.ProceduralMaxPatterns, m.cfg.ProceduralMinSuccessScore)
	if err != nil {
		slog.Warn("procedural lookup unavailable, starting without hints",
			"session_id", mc.SessionID, "error", err)
		return mc
	}

	mc.Patterns = patterns
	for _, p := range patterns {
		category, _ := p["category"].(string)
		approach, _ := p["approach"].(string)
		score, _ := p["success_score"].(float64)
		if approach == "" {
			continue
		}
		mc.Hints = append(mc.Hints, fmt.Sprintf(
			"Previously successful approach for %s questions (success %.2f): %s.",
			category, score, approach))
	}
	return mc
}

// Generation is a finished search worth remembering.
type Generation struct {
	SessionID    string
	Query        string
	UserLevel    string
	Category     string
	Completeness float64
	ToolSequence []string
	Thoughts     []string
	Iterations   int
}

// SaveSuccessfulGeneration distills a finished search into a
// procedural pattern and returns it so callers can mirror it
// elsewhere. Generations below the save threshold are skipped with a
// nil pattern: a library of mediocre runs would steer future searches
// toward mediocrity.
func (m *Manager) SaveSuccessfulGeneration(ctx context.Context, g Generation) (*Pattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.Completeness < m.cfg.SaveThreshold {
		slog.Debug("generation below save threshold, not remembered",
			"session_id", g.SessionID, "completeness", g.Completeness)
		return nil, nil
	}

	category := g.Category
	if category == "" {
		category = InferCategory(g.Query)
	}

	var reasoning strings.Builder
	for i, thought := range g.Thoughts {
		if i > 0 {
			reasoning.WriteString(" | ")
		}
		reasoning.WriteString(truncateRunes(thought, 200))
		if reasoning.Len() > 1000 {
			break
		}
	}

	pattern := Pattern{
		ID:           uuid.NewString(),
		Query:        g.Query,
		Category:     category,
		Approach:     strings.Join(g.ToolSequence, " -> "),
		Reasoning:    reasoning.String(),
		SuccessScore: g.Completeness,
		PathLength:   len(g.ToolSequence),
	}
	if err := m.Procedural.SavePattern(ctx, pattern); err != nil {
		return nil, err
	}
	return &pattern, nil
}

// categoryMarkers maps each category to the substrings that signal it.
// Order matters: the first matching category wins.
var categoryMarkers = []struct {
	name    string
	markers []string
}{
	{"sorting", []string{"сортиров", "sort", "quicksort", "mergesort", "пузыр", "слияни"}},
	{"graphs", []string{"граф", "graph", "bfs", "dfs", "обход в ширину", "обход в глубину", "дейкстр", "dijkstra", "кратчайш"}},
	{"dynamic_programming", []string{"динамическ", "dynamic programming", "мемоиза", "memoiza", "рюкзак", "knapsack"}},
	{"data_structures", []string{"стек", "очеред", "хеш", "дерев", "куча", "связн", "список", "массив", "stack", "queue", "hash", "tree", "heap", "linked list", "array"}},
	{"complexity", []string{"сложность", "асимптот", "big o", "o(n", "complexity"}},
	{"recursion", []string{"рекурс", "recursion", "recursive"}},
	{"greedy", []string{"жадн", "greedy"}},
}

// InferCategory assigns a query to a coarse topic bucket used to label
// procedural patterns.
func InferCategory(query string) string {
	lower := strings.ToLower(query)
	for _, bucket := range categoryMarkers {
		for _, marker := range bucket.markers {
			if strings.Contains(lower, marker) {
				return bucket.name
			}
		}
	}
	return "general"
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func metaFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return 0
	}
}

func metaInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
