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
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/memory"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tool"
)

// promptTokenBudget bounds the thought-generation prompt. Over budget,
// the evidence snippets are shortened, then dropped.
const promptTokenBudget = 6000

const snippetRunes = 400

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens measures with cl100k_base, or estimates at four runes
// per token when the encoding data is unavailable.
func countTokens(text string) int {
	encodingOnce.Do(func() {
		encoding, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoding == nil {
		return utf8.RuneCountInString(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// ReasoningChain asks the expensive model for the next reasoning
// steps.
type ReasoningChain struct {
	router   *model.Router
	registry *tool.Registry
}

// NewReasoningChain creates the chain. The registry supplies the tool
// catalog embedded in the prompt.
func NewReasoningChain(router *model.Router, registry *tool.Registry) *ReasoningChain {
	return &ReasoningChain{router: router, registry: registry}
}

type thoughtProposal struct {
	Reasoning  string         `json:"reasoning"`
	ToolName   string         `json:"tool_name"`
	ToolParams map[string]any `json:"tool_params"`
}

type thoughtsReply struct {
	Thoughts []thoughtProposal `json:"thoughts"`
}

// GenerateThoughts proposes up to branching child nodes for current.
// Each child copies the parent's collected documents. Returns an error
// when the model is unavailable or proposes nothing usable; the
// orchestrator then falls back to the rule-based action.
func (r *ReasoningChain) GenerateThoughts(ctx context.Context, current *TreeNode, query, userLevel string, mc *memory.Context, branching int) ([]*TreeNode, error) {
	prompt := r.buildPrompt(current, query, userLevel, mc, branching, snippetRunes)
	if countTokens(prompt) > promptTokenBudget {
		prompt = r.buildPrompt(current, query, userLevel, mc, branching, 120)
	}
	if countTokens(prompt) > promptTokenBudget {
		prompt = r.buildPrompt(current, query, userLevel, mc, branching, 0)
	}

	reply, err := r.router.Invoke(ctx, model.TaskThoughtGeneration, prompt)
	if err != nil {
		return nil, err
	}

	proposals, err := parseThoughts(reply)
	if err != nil {
		return nil, err
	}
	if len(proposals) > branching {
		proposals = proposals[:branching]
	}

	children := make([]*TreeNode, 0, len(proposals))
	for _, p := range proposals {
		if p.ToolName == "" {
			continue
		}
		if p.ToolParams == nil {
			p.ToolParams = map[string]any{"query": query}
		}
		children = append(children, newChild(current, p.Reasoning, p.ToolName, p.ToolParams))
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("reasoning produced no usable thoughts")
	}
	return children, nil
}

func (r *ReasoningChain) buildPrompt(current *TreeNode, query, userLevel string, mc *memory.Context, branching, snippetLen int) string {
	var sb strings.Builder

	sb.WriteString("You are planning the next research steps for an educational answer about ")
	sb.WriteString("algorithms and data structures. The student asks in Russian.\n\n")
	fmt.Fprintf(&sb, "Question: %s\nStudent level: %s\n", query, userLevel)
	fmt.Fprintf(&sb, "Current depth: %d, current completeness: %.2f\n\n", current.Depth, current.Completeness)

	sb.WriteString("Evidence collected so far:\n")
	sb.WriteString(summarizeEvidence(current.Collected, snippetLen))

	if mc != nil && len(mc.Hints) > 0 {
		sb.WriteString("\nApproaches that worked on similar questions:\n")
		sb.WriteString(mc.HintText())
		sb.WriteString("\n")
	}

	sb.WriteString("\nAvailable tools:\n")
	for _, name := range r.registry.Names() {
		t := r.registry.Get(name)
		if t == nil {
			continue
		}
		schema, _ := json.Marshal(t.Parameters())
		fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", t.Name(), t.Description(), schema)
	}

	fmt.Fprintf(&sb,
		"\nPropose up to %d distinct next steps. Reply with only a JSON object of the shape\n"+
			`{"thoughts": [{"reasoning": "...", "tool_name": "...", "tool_params": {...}}]}`+"\n",
		branching)
	return sb.String()
}

// summarizeEvidence renders counts per source family plus the last
// three snippets. snippetLen 0 drops the snippets entirely.
func summarizeEvidence(docs []document.Document, snippetLen int) string {
	if len(docs) == 0 {
		return "(none yet)\n"
	}

	families := map[string]int{}
	for _, d := range docs {
		families[sourceFamily(d)]++
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d documents:", len(docs))
	for _, family := range []string{"corpus", "web", "memory", "other"} {
		if n := families[family]; n > 0 {
			fmt.Fprintf(&sb, " %s=%d", family, n)
		}
	}
	sb.WriteString("\n")

	if snippetLen > 0 {
		lo := len(docs) - 3
		if lo < 0 {
			lo = 0
		}
		for _, d := range docs[lo:] {
			fmt.Fprintf(&sb, "- [%s] %s\n", d.Source, truncateRunes(d.Content, snippetLen))
		}
	}
	return sb.String()
}

func sourceFamily(d document.Document) string {
	switch {
	case d.IsWebSourced():
		return "web"
	case d.Meta("origin") == "procedural_memory" || d.Source == "working_memory":
		return "memory"
	case d.Source == "":
		return "other"
	default:
		return "corpus"
	}
}

// parseThoughts extracts the thoughts object from a possibly fenced
// reply.
func parseThoughts(reply string) ([]thoughtProposal, error) {
	open := strings.Index(reply, "{")
	close_ := strings.LastIndex(reply, "}")
	if open < 0 || close_ <= open {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var parsed thoughtsReply
	if err := json.Unmarshal([]byte(reply[open:close_+1]), &parsed); err != nil {
		return nil, fmt.Errorf("bad thoughts payload: %w", err)
	}
	if len(parsed.Thoughts) == 0 {
		return nil, fmt.Errorf("empty thoughts list")
	}
	return parsed.Thoughts, nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
