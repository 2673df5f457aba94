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

package tot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/guard"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tool"
)

func totCfg() config.ToTConfig {
	return config.ToTConfig{
		MaxDepth:              3,
		BranchingFactor:       2,
		CompletenessThreshold: 0.85,
		PromiseThreshold:      0.5,
		DeadEndRelevance:      0.3,
		DeadEndQuality:        0.3,
	}
}

// stubTool is a canned tool whose executions are logged in order.
type stubTool struct {
	name   string
	docs   []document.Document
	fail   bool
	called *[]string
}

func (s *stubTool) Name() string                { return s.name }
func (s *stubTool) Description() string         { return "stub" }
func (s *stubTool) Parameters() map[string]any  { return map[string]any{"type": "object"} }
func (s *stubTool) Execute(ctx context.Context, params map[string]any) *tool.Result {
	if s.called != nil {
		*s.called = append(*s.called, s.name)
	}
	if s.fail {
		return tool.Failure("tool_execution: stub failure", time.Now())
	}
	return tool.Successful(s.docs, nil, time.Now())
}

func stubRegistry(called *[]string, tools ...*stubTool) *tool.Registry {
	reg := tool.NewRegistry()
	for _, s := range tools {
		s.called = called
		reg.Register(s.name, func() tool.Tool { return s })
	}
	return reg
}

func corpusDocs(n int) []document.Document {
	docs := make([]document.Document, n)
	for i := range docs {
		docs[i] = document.Document{
			Content: fmt.Sprintf("Фрагмент %d про быструю сортировку и её свойства.", i),
			Source:  "corpus",
		}
	}
	return docs
}

func thoughtsJSON(tools ...string) string {
	var parts []string
	for i, name := range tools {
		parts = append(parts, fmt.Sprintf(
			`{"reasoning": "step %d", "tool_name": "%s", "tool_params": {"query": "q"}}`, i+1, name))
	}
	return `{"thoughts": [` + strings.Join(parts, ",") + `]}`
}

// evalReply builds a cheap-model handler serving promise and node
// evaluation prompts.
func evalReply(promise string, eval string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		if strings.Contains(prompt, "How promising") {
			return promise, nil
		}
		return eval, nil
	}
}

func newOrchestrator(cfg config.ToTConfig, expensive, cheap model.Model, reg *tool.Registry, guardEnabled bool) *Orchestrator {
	router := model.NewRouterWithModels(expensive, cheap)
	gcfg := config.Default()
	if !guardEnabled {
		gcfg.DisableContentGuard()
	}
	return New(cfg, Options{
		Reasoning:  NewReasoningChain(router, reg),
		Evaluation: NewEvaluationChain(router),
		Registry:   reg,
		Guard:      guard.New(gcfg.ContentGuard, router),
	})
}

func TestSearch_GoalReachedFirstIteration(t *testing.T) {
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(5)})
	expensive := model.NewMockModel(thoughtsJSON("adaptive_rag_search"))
	cheap := &model.MockModel{Handler: evalReply("0.9",
		`{"completeness": 0.9, "relevance": 0.9, "quality": 0.9, "should_continue": false}`)}
	o := newOrchestrator(totCfg(), expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "быстрая сортировка", "beginner", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.BestPath, 2, "root plus the goal child")
	assert.Equal(t, 0, res.BestPath[0].Depth)
	assert.Equal(t, 1, res.BestPath[1].Depth)
	assert.Equal(t, StatusGoalReached, res.BestPath[1].Status)
	assert.InDelta(t, 0.9, res.FinalCompleteness, 1e-9)
	assert.Equal(t, []string{"adaptive_rag_search"}, res.ToolsUsed)
	assert.Len(t, res.Collected, 5)
	assert.Equal(t, 1, res.ModelCalls[model.TierExpensive])
	assert.Equal(t, 2, res.ModelCalls[model.TierCheap], "one promise, one evaluation")
}

func TestSearch_MaxDepthZero(t *testing.T) {
	cfg := totCfg()
	cfg.MaxDepth = 0
	expensive := model.NewFailingModel(model.ErrUnavailable)
	cheap := model.NewFailingModel(model.ErrUnavailable)
	o := newOrchestrator(cfg, expensive, cheap, stubRegistry(nil), false)

	res, err := o.Search(context.Background(), "стек и очередь", "beginner", nil)

	require.NoError(t, err)
	assert.Zero(t, res.Iterations)
	require.Len(t, res.Explored, 1, "only the root is ever popped")
	require.Len(t, res.BestPath, 1)
	assert.Zero(t, res.FinalCompleteness)
	assert.Empty(t, res.ToolsUsed)
	assert.Zero(t, expensive.CallCount(), "no expansion happens at depth zero")
}

func TestSearch_PromiseThresholdPrunesEverything(t *testing.T) {
	cfg := totCfg()
	cfg.PromiseThreshold = 1.0
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(2)})
	expensive := model.NewMockModel(thoughtsJSON("adaptive_rag_search", "web_search"))
	cheap := &model.MockModel{Handler: evalReply("0.8", `{}`)}
	o := newOrchestrator(cfg, expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "хеш-таблица", "beginner", nil)

	require.NoError(t, err)
	require.Len(t, res.BestPath, 1, "the root is the best effort")
	assert.Equal(t, StatusDeadEnd, res.BestPath[0].Status)
	assert.Empty(t, called, "pruned candidates never execute")
}

func TestSearch_DeadEndIsNotReExpanded(t *testing.T) {
	cfg := totCfg()
	cfg.BranchingFactor = 1
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(2)})
	expensive := model.NewMockModel(thoughtsJSON("adaptive_rag_search"))
	// relevance below the dead-end threshold demotes the child
	cheap := &model.MockModel{Handler: evalReply("0.9",
		`{"completeness": 0.4, "relevance": 0.2, "quality": 0.8, "should_continue": true}`)}
	o := newOrchestrator(cfg, expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "деревья поиска", "intermediate", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations, "the dead end is popped but never expanded")
	assert.Equal(t, 1, expensive.CallCount())
	require.Len(t, res.Explored, 2)
	assert.Equal(t, StatusDeadEnd, res.Explored[1].Status)
}

func TestSearch_HighestPromiseChildExecutesFirst(t *testing.T) {
	cfg := totCfg()
	cfg.BranchingFactor = 3
	var called []string
	reg := stubRegistry(&called,
		&stubTool{name: "tool_a", docs: corpusDocs(1)},
		&stubTool{name: "tool_b", docs: corpusDocs(6)},
		&stubTool{name: "tool_c", docs: corpusDocs(1)},
	)
	expensive := model.NewMockModel(thoughtsJSON("tool_a", "tool_b", "tool_c"))
	cheap := &model.MockModel{Handler: func(prompt string) (string, error) {
		if strings.Contains(prompt, "How promising") {
			switch {
			case strings.Contains(prompt, "tool tool_a"):
				return "0.6", nil
			case strings.Contains(prompt, "tool tool_b"):
				return "0.9", nil
			default:
				return "0.7", nil
			}
		}
		return `{"completeness": 0.95, "relevance": 0.9, "quality": 0.9, "should_continue": false}`, nil
	}}
	o := newOrchestrator(cfg, expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "сравнение сортировок", "beginner", nil)

	require.NoError(t, err)
	require.Equal(t, []string{"tool_b"}, called, "LIFO best-first picks the top promise")
	assert.Equal(t, "tool_b", res.BestPath[len(res.BestPath)-1].ToolName)
}

func TestSearch_RuleFallbackReachesGoal(t *testing.T) {
	// every model is down; the depth-0 fallback still retrieves enough
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(6)})
	expensive := model.NewFailingModel(model.ErrUnavailable)
	cheap := model.NewFailingModel(model.ErrUnavailable)
	o := newOrchestrator(totCfg(), expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "быстрая сортировка", "beginner", nil)

	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	// heuristic evaluation: 6 documents x 0.15 = 0.9 completeness
	assert.InDelta(t, 0.9, res.FinalCompleteness, 1e-9)
	assert.Equal(t, StatusGoalReached, res.BestPath[len(res.BestPath)-1].Status)
	assert.Equal(t, []string{"adaptive_rag_search"}, res.ToolsUsed)
}

func TestSearch_SearchFailed(t *testing.T) {
	// models down and no tool registered: every fallback action fails
	expensive := model.NewFailingModel(model.ErrUnavailable)
	cheap := model.NewFailingModel(model.ErrUnavailable)
	o := newOrchestrator(totCfg(), expensive, cheap, tool.NewRegistry(), false)

	res, err := o.Search(context.Background(), "графы", "beginner", nil)

	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.Nil(t, res)
}

func TestSearch_GuardRemovesAllEvidence(t *testing.T) {
	cfg := totCfg()
	cfg.MaxDepth = 1
	cfg.BranchingFactor = 1
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "web_search", docs: []document.Document{
		{Content: "Грубый текст. Ты идиот и дебил, я тебя ненавижу и ещё раз ненавижу.", Source: "https://spam.example"},
	}})
	expensive := model.NewMockModel(thoughtsJSON("web_search"))
	cheap := &model.MockModel{Handler: func(prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Rate each document"):
			return `[{"is_safe": false, "toxicity_score": 1.0, "issues": ["insults"]}]`, nil
		case strings.Contains(prompt, "How promising"):
			return "0.9", nil
		default:
			return `{"completeness": 0.1, "relevance": 0.8, "quality": 0.8, "should_continue": true}`, nil
		}
	}}
	o := newOrchestrator(cfg, expensive, cheap, reg, true)

	res, err := o.Search(context.Background(), "сортировка", "beginner", nil)

	require.NoError(t, err, "an all-filtered tool result never aborts the search")
	assert.Empty(t, res.Collected, "filtered documents do not enter the node")
	assert.LessOrEqual(t, res.FinalCompleteness, 0.1)
}

func TestSearch_IterationBudget(t *testing.T) {
	cfg := totCfg()
	cfg.MaxDepth = 2
	cfg.BranchingFactor = 2
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(1)})
	expensive := model.NewMockModel(thoughtsJSON("adaptive_rag_search", "adaptive_rag_search"))
	// never complete, never dead: the budget is the only stop
	cheap := &model.MockModel{Handler: evalReply("0.9",
		`{"completeness": 0.2, "relevance": 0.8, "quality": 0.8, "should_continue": true}`)}
	o := newOrchestrator(cfg, expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "обход графа", "beginner", nil)

	require.NoError(t, err)
	assert.LessOrEqual(t, res.Iterations, cfg.MaxIterations())
	assert.Greater(t, res.Iterations, 0)
}

func TestSearch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	o := newOrchestrator(totCfg(), model.NewMockModel("x"), model.NewMockModel("y"),
		tool.NewRegistry(), false)

	res, err := o.Search(ctx, "сортировка", "beginner", nil)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res, "the partial result is still returned")
	assert.Zero(t, res.Iterations)
}

func TestSearch_ChildInheritsParentDocuments(t *testing.T) {
	cfg := totCfg()
	cfg.BranchingFactor = 1
	var called []string
	reg := stubRegistry(&called, &stubTool{name: "adaptive_rag_search", docs: corpusDocs(2)})
	expensive := model.NewMockModel(thoughtsJSON("adaptive_rag_search"))
	cheap := &model.MockModel{Handler: evalReply("0.9",
		`{"completeness": 0.5, "relevance": 0.8, "quality": 0.8, "should_continue": true}`)}
	o := newOrchestrator(cfg, expensive, cheap, reg, false)

	res, err := o.Search(context.Background(), "куча", "beginner", nil)

	require.NoError(t, err)
	// depth-1 child collected 2 docs, depth-2 child starts from them
	var depth2 *TreeNode
	for _, n := range res.Explored {
		if n.Depth == 2 {
			depth2 = n
			break
		}
	}
	require.NotNil(t, depth2)
	assert.GreaterOrEqual(t, len(depth2.Collected), 2, "child evidence is a superset of its parent's")
	for _, n := range res.Explored {
		if n.ParentID != "" {
			parentDepth := n.Depth - 1
			assert.Equal(t, parentDepth+1, n.Depth)
		}
	}
}

func TestTracePath_BreaksCycles(t *testing.T) {
	a := &TreeNode{ID: "a"}
	b := &TreeNode{ID: "b", ParentID: "a"}
	a.ParentID = "b" // corrupted index
	index := map[string]*TreeNode{"a": a, "b": b}

	path := tracePath(index, b)

	require.Len(t, path, 2)
	assert.Equal(t, "a", path[0].ID)
	assert.Equal(t, "b", path[1].ID)
}

func TestPickBest_EarlierWinsTies(t *testing.T) {
	first := &TreeNode{ID: "first", Completeness: 0.6}
	second := &TreeNode{ID: "second", Completeness: 0.6}
	third := &TreeNode{ID: "third", Completeness: 0.4}

	best := pickBest([]*TreeNode{first, second, third})

	assert.Equal(t, "first", best.ID)
}
