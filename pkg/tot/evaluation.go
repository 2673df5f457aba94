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
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

// promiseTimeout caps each pre-execution promise call.
const promiseTimeout = 5 * time.Second

// EvaluationChain prices candidates before execution and judges nodes
// after. All calls go to the cheap tier; every failure has a heuristic
// answer, so neither operation returns an error.
type EvaluationChain struct {
	router *model.Router
}

// NewEvaluationChain creates the chain.
func NewEvaluationChain(router *model.Router) *EvaluationChain {
	return &EvaluationChain{router: router}
}

// Promise estimates in [0,1] how likely a candidate step is to advance
// the answer. On model failure it falls back to a per-tool prior.
func (e *EvaluationChain) Promise(ctx context.Context, candidate, current *TreeNode, query string) float64 {
	ctx, cancel := context.WithTimeout(ctx, promiseTimeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Question: %s\nEvidence so far: %d documents, completeness %.2f.\n"+
			"Proposed next step: %s (tool %s).\n"+
			"How promising is this step for answering the question? "+
			"Reply with only a number between 0 and 1.",
		query, len(current.Collected), current.Completeness,
		candidate.Reasoning, candidate.ToolName)

	reply, err := e.router.Invoke(ctx, model.TaskPromiseEvaluation, prompt)
	if err != nil {
		return heuristicPromise(candidate.ToolName)
	}
	score, err := parseFirstFloat(reply)
	if err != nil {
		return heuristicPromise(candidate.ToolName)
	}
	return clamp01(score)
}

// heuristicPromise is the static prior per planned tool, used when the
// cheap model cannot answer.
func heuristicPromise(toolName string) float64 {
	switch {
	case strings.HasPrefix(toolName, "adaptive_rag"):
		return 0.9
	case strings.HasPrefix(toolName, "memory"):
		return 0.8
	case strings.HasPrefix(toolName, "corrective"):
		return 0.7
	case strings.HasPrefix(toolName, "web_search"):
		return 0.6
	case strings.HasPrefix(toolName, "concept"):
		return 0.6
	default:
		return 0.5
	}
}

type evaluationReply struct {
	Completeness   float64 `json:"completeness"`
	Relevance      float64 `json:"relevance"`
	Quality        float64 `json:"quality"`
	ShouldContinue bool    `json:"should_continue"`
}

// EvaluateNode judges a node after its tool ran. On model failure the
// verdict is derived from the evidence volume alone.
func (e *EvaluationChain) EvaluateNode(ctx context.Context, node *TreeNode, query string) NodeEvaluation {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", query)
	fmt.Fprintf(&sb, "A research step just ran tool %s. Evidence now holds %d documents.\n",
		node.ToolName, len(node.Collected))

	lo := len(node.Collected) - 3
	if lo < 0 {
		lo = 0
	}
	for _, d := range node.Collected[lo:] {
		fmt.Fprintf(&sb, "- %s\n", truncateRunes(d.Content, 200))
	}

	sb.WriteString(
		"\nJudge the state. Reply with only a JSON object " +
			`{"completeness": 0..1, "relevance": 0..1, "quality": 0..1, "should_continue": bool}.`)

	reply, err := e.router.Invoke(ctx, model.TaskNodeEvaluation, sb.String())
	if err != nil {
		return fallbackEvaluation(len(node.Collected))
	}

	open := strings.Index(reply, "{")
	close_ := strings.LastIndex(reply, "}")
	if open < 0 || close_ <= open {
		return fallbackEvaluation(len(node.Collected))
	}
	var parsed evaluationReply
	if err := json.Unmarshal([]byte(reply[open:close_+1]), &parsed); err != nil {
		return fallbackEvaluation(len(node.Collected))
	}

	return NodeEvaluation{
		Completeness:   clamp01(parsed.Completeness),
		Relevance:      clamp01(parsed.Relevance),
		Quality:        clamp01(parsed.Quality),
		ShouldContinue: parsed.ShouldContinue,
	}
}

// fallbackEvaluation scores purely by evidence volume: 0.15 per
// collected document, capped at 1.
func fallbackEvaluation(collected int) NodeEvaluation {
	completeness := clamp01(0.15 * float64(collected))
	return NodeEvaluation{
		Completeness:   completeness,
		Relevance:      0.8,
		Quality:        0.8,
		ShouldContinue: completeness < 0.85,
	}
}

// parseFirstFloat reads the first parseable number in the reply.
func parseFirstFloat(reply string) (float64, error) {
	for _, field := range strings.FieldsFunc(reply, func(r rune) bool {
		return !(r == '.' || r == '-' || (r >= '0' && r <= '9'))
	}) {
		field = strings.TrimRight(field, ".")
		if v, err := strconv.ParseFloat(field, 64); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no number in reply")
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
