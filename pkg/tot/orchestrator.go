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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/guard"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/memory"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/observability"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tool"
)

// ErrSearchFailed means the search could not produce even a
// best-effort solution: the expensive model never answered and no
// rule-based fallback action succeeded either.
var ErrSearchFailed = errors.New("search failed")

// StepAppender receives one working-memory entry per iteration.
type StepAppender interface {
	AppendStep(ctx context.Context, sessionID string, step map[string]any) error
}

// Options are the orchestrator's injected collaborators. Working and
// Metrics may be nil.
type Options struct {
	Reasoning  *ReasoningChain
	Evaluation *EvaluationChain
	Registry   *tool.Registry
	Guard      *guard.Guard
	Working    StepAppender
	Metrics    *observability.Metrics
}

// Orchestrator runs the best-first DFS over reasoning steps.
type Orchestrator struct {
	cfg        config.ToTConfig
	reasoning  *ReasoningChain
	evaluation *EvaluationChain
	registry   *tool.Registry
	guard      *guard.Guard
	working    StepAppender
	metrics    *observability.Metrics
}

// New creates an orchestrator.
func New(cfg config.ToTConfig, opts Options) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		reasoning:  opts.Reasoning,
		evaluation: opts.Evaluation,
		registry:   opts.Registry,
		guard:      opts.Guard,
		working:    opts.Working,
		metrics:    opts.Metrics,
	}
}

// Search explores the reasoning tree for query until the completeness
// threshold is reached or the iteration budget runs out. A cancelled
// context stops the search at the next iteration boundary; the partial
// result is returned together with the context error.
func (o *Orchestrator) Search(ctx context.Context, query, userLevel string, mc *memory.Context) (*Result, error) {
	start := time.Now()

	rec := model.RecorderFrom(ctx)
	if rec == nil {
		rec = model.NewCallRecorder()
		ctx = model.WithRecorder(ctx, rec)
	}

	root := newRoot()
	index := map[string]*TreeNode{root.ID: root}
	stack := []*TreeNode{root}
	var explored []*TreeNode

	var best *TreeNode
	bestScore := -1.0
	goalReached := false
	toolsUsed := map[string]struct{}{}
	iterations := 0
	maxIterations := o.cfg.MaxIterations()

	reasoningWorked := false
	toolWorked := false
	guardTotals := map[string]int{}

	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}

		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		current.Visited = true
		explored = append(explored, current)

		// termination checks, in order
		if current.Completeness >= o.cfg.CompletenessThreshold {
			current.Status = StatusGoalReached
			best, bestScore = current, current.Completeness
			goalReached = true
			break
		}
		if current.Depth >= o.cfg.MaxDepth {
			if current.Completeness > bestScore {
				best, bestScore = current, current.Completeness
			}
			continue
		}
		if current.Status == StatusDeadEnd {
			continue
		}
		if iterations >= maxIterations {
			break
		}
		iterations++

		// expand
		candidates, err := o.reasoning.GenerateThoughts(ctx, current, query, userLevel, mc, o.cfg.BranchingFactor)
		if err != nil {
			slog.Debug("reasoning unavailable, using rule-based fallback",
				"depth", current.Depth, "error", err)
			name, params := fallbackAction(current, query)
			candidates = []*TreeNode{newChild(current, "rule-based fallback", name, params)}
		} else {
			reasoningWorked = true
		}
		for _, c := range candidates {
			current.Children = append(current.Children, c.ID)
			index[c.ID] = c
		}

		// price candidates concurrently; Promise never errors
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.cfg.BranchingFactor)
		for _, c := range candidates {
			g.Go(func() error {
				c.Promise = o.evaluation.Promise(gctx, c, current, query)
				return nil
			})
		}
		_ = g.Wait()

		survivors := candidates[:0]
		for _, c := range candidates {
			if c.Promise >= o.cfg.PromiseThreshold {
				survivors = append(survivors, c)
			}
		}
		if len(survivors) == 0 {
			current.Status = StatusDeadEnd
			continue
		}

		sort.SliceStable(survivors, func(i, j int) bool {
			return survivors[i].Promise > survivors[j].Promise
		})
		for i := len(survivors) - 1; i >= 0; i-- {
			stack = append(stack, survivors[i])
		}

		// execute the most promising child right away
		child := stack[len(stack)-1]
		child.Status = StatusExecuting
		res := o.registry.ExecuteTool(ctx, child.ToolName, child.ToolParams)
		child.ToolResult = res
		child.ExecutionTime = res.Duration
		child.Status = StatusExecuted
		toolsUsed[child.ToolName] = struct{}{}
		if res.Success {
			toolWorked = true
		}
		if o.metrics != nil {
			o.metrics.RecordToolExecution(child.ToolName, res.Success, res.Duration.Seconds())
		}

		if res.Success && len(res.Documents) > 0 {
			cleaned, report, err := o.guard.Filter(ctx, res.Documents)
			if err != nil && !errors.Is(err, guard.ErrAllFiltered) {
				slog.Warn("content guard error, discarding tool output", "error", err)
			}
			for _, cd := range cleaned {
				child.Collected = append(child.Collected, cd.Document)
			}
			guardTotals["toxicity"] += report.ToxicityFiltered
			guardTotals["policy"] += report.PolicyFiltered
			guardTotals["quality"] += report.QualityFiltered
			o.recordGuard(report)
		}

		eval := o.evaluation.EvaluateNode(ctx, child, query)
		child.Completeness = eval.Completeness
		child.Relevance = eval.Relevance
		child.Quality = eval.Quality

		switch {
		case eval.Relevance < o.cfg.DeadEndRelevance || eval.Quality < o.cfg.DeadEndQuality:
			child.Status = StatusDeadEnd
		case eval.Completeness >= o.cfg.CompletenessThreshold:
			child.Status = StatusGoalReached
			best, bestScore = child, eval.Completeness
			goalReached = true
		default:
			child.Status = StatusPromising
			if eval.Completeness > bestScore {
				best, bestScore = child, eval.Completeness
			}
		}

		o.appendStep(ctx, mc, iterations, child, res)

		if goalReached {
			explored = append(explored, child)
			child.Visited = true
			removeFromStack(&stack, child)
			break
		}
	}

	if iterations > 0 && !reasoningWorked && !toolWorked {
		return nil, fmt.Errorf("%w: model unavailable and every fallback action failed", ErrSearchFailed)
	}

	if !goalReached {
		best = pickBest(explored)
	}
	if best == nil {
		best = root
	}

	result := &Result{
		BestPath:          tracePath(index, best),
		Explored:          explored,
		Collected:         best.Collected,
		FinalCompleteness: best.Completeness,
		Iterations:        iterations,
		ToolsUsed:         sortedKeys(toolsUsed),
		Elapsed:           time.Since(start),
		ModelCalls:        rec.Counts(),
		GuardFiltered:     guardTotals,
	}

	if o.metrics != nil {
		o.metrics.SearchDuration.Observe(result.Elapsed.Seconds())
		o.metrics.SearchIterations.Set(float64(iterations))
		for tier, n := range result.ModelCalls {
			o.metrics.ModelCalls.WithLabelValues(string(tier)).Add(float64(n))
		}
	}
	slog.Info("tree search finished",
		"iterations", iterations,
		"explored", len(explored),
		"completeness", result.FinalCompleteness,
		"goal_reached", goalReached,
		"tools", result.ToolsUsed)

	return result, ctx.Err()
}

func (o *Orchestrator) recordGuard(report guard.Report) {
	if o.metrics == nil {
		return
	}
	o.metrics.GuardFiltered.WithLabelValues("toxicity").Add(float64(report.ToxicityFiltered))
	o.metrics.GuardFiltered.WithLabelValues("policy").Add(float64(report.PolicyFiltered))
	o.metrics.GuardFiltered.WithLabelValues("quality").Add(float64(report.QualityFiltered))
}

func (o *Orchestrator) appendStep(ctx context.Context, mc *memory.Context, iteration int, node *TreeNode, res *tool.Result) {
	if o.working == nil || mc == nil {
		return
	}
	observation := fmt.Sprintf("%d documents", len(res.Documents))
	if !res.Success {
		observation = res.Error
	}
	step := map[string]any{
		"iteration":    iteration,
		"node_id":      node.ID,
		"depth":        node.Depth,
		"thought":      node.Thought,
		"tool":         node.ToolName,
		"observation":  observation,
		"completeness": node.Completeness,
	}
	if err := o.working.AppendStep(ctx, mc.SessionID, step); err != nil {
		slog.Warn("working memory append failed", "session_id", mc.SessionID, "error", err)
	}
}

// pickBest returns the explored node with maximum completeness;
// earlier nodes win ties.
func pickBest(explored []*TreeNode) *TreeNode {
	var best *TreeNode
	for _, n := range explored {
		if best == nil || n.Completeness > best.Completeness {
			best = n
		}
	}
	return best
}

// tracePath walks parent ids from node to the root. The visited set
// breaks accidental cycles in a corrupted index.
func tracePath(index map[string]*TreeNode, node *TreeNode) []*TreeNode {
	var reversed []*TreeNode
	seen := map[string]bool{}
	for n := node; n != nil && !seen[n.ID]; n = index[n.ParentID] {
		seen[n.ID] = true
		reversed = append(reversed, n)
	}

	path := make([]*TreeNode, len(reversed))
	for i, n := range reversed {
		path[len(reversed)-1-i] = n
	}
	return path
}

func removeFromStack(stack *[]*TreeNode, node *TreeNode) {
	s := *stack
	for i := range s {
		if s[i].ID == node.ID {
			*stack = append(s[:i], s[i+1:]...)
			return
		}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
