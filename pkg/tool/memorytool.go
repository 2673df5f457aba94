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
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

// PatternFinder looks up procedural patterns similar to a query.
type PatternFinder interface {
	FindSimilarPatterns(ctx context.Context, query string, limit int, minSuccessScore float64) ([]map[string]any, error)
}

// SessionReader returns the working-memory steps of a session.
type SessionReader interface {
	GetSessionContext(ctx context.Context, sessionID string) ([]map[string]any, error)
}

// MemoryParams are the memory_retrieval inputs.
type MemoryParams struct {
	Query           string  `mapstructure:"query" json:"query" jsonschema:"required,description=Query to match patterns against"`
	MemoryType      string  `mapstructure:"memory_type" json:"memory_type,omitempty" jsonschema:"enum=working,enum=procedural,enum=all,description=Which memory to read"`
	SessionID       string  `mapstructure:"session_id" json:"session_id,omitempty" jsonschema:"description=Session for working-memory reads"`
	Limit           int     `mapstructure:"limit" json:"limit,omitempty" jsonschema:"description=Maximum entries to return"`
	MinSuccessScore float64 `mapstructure:"min_success_score" json:"min_success_score,omitempty" jsonschema:"description=Success-score floor for patterns"`
}

// MemoryRetrievalTool exposes the memory subsystem to the planner.
// Procedural hits become Documents whose content is a prose summary of
// the pattern; working memory is session-scoped and typically empty
// for fresh requests.
type MemoryRetrievalTool struct {
	patterns        PatternFinder
	sessions        SessionReader
	minSuccessScore float64
}

// NewMemoryRetrievalTool creates the tool.
func NewMemoryRetrievalTool(patterns PatternFinder, sessions SessionReader, minSuccessScore float64) *MemoryRetrievalTool {
	return &MemoryRetrievalTool{
		patterns:        patterns,
		sessions:        sessions,
		minSuccessScore: minSuccessScore,
	}
}

// Name returns "memory_retrieval".
func (t *MemoryRetrievalTool) Name() string { return "memory_retrieval" }

// Description returns the catalog line.
func (t *MemoryRetrievalTool) Description() string {
	return "Looks up remembered reasoning patterns and session history"
}

// Parameters returns the params schema.
func (t *MemoryRetrievalTool) Parameters() map[string]any {
	return schemaFor(&MemoryParams{})
}

// Execute reads the requested memory kinds. A degraded memory backend
// yields an empty success, not a failure.
func (t *MemoryRetrievalTool) Execute(ctx context.Context, params map[string]any) *Result {
	start := time.Now()

	var p MemoryParams
	if err := decodeParams(params, &p); err != nil {
		return Failure(fmt.Sprintf("tool_execution: bad params: %v", err), start)
	}
	if p.Query == "" {
		return Failure("tool_execution: query is required", start)
	}
	if p.Limit <= 0 {
		p.Limit = 3
	}
	if p.MinSuccessScore == 0 {
		p.MinSuccessScore = t.minSuccessScore
	}
	memoryType := p.MemoryType
	if memoryType == "" {
		memoryType = "all"
	}

	var docs []document.Document
	metadata := map[string]any{"memory_type": memoryType}

	if memoryType == "procedural" || memoryType == "all" {
		patterns, err := t.patterns.FindSimilarPatterns(ctx, p.Query, p.Limit, p.MinSuccessScore)
		if err != nil {
			metadata["procedural_degraded"] = true
		} else {
			for _, pattern := range patterns {
				docs = append(docs, patternDocument(pattern))
			}
			metadata["patterns"] = len(patterns)
		}
	}

	if (memoryType == "working" || memoryType == "all") && p.SessionID != "" && t.sessions != nil {
		steps, err := t.sessions.GetSessionContext(ctx, p.SessionID)
		if err != nil {
			metadata["working_degraded"] = true
		} else {
			metadata["working_steps"] = len(steps)
			for _, step := range steps {
				if thought, ok := step["thought"].(string); ok && thought != "" {
					docs = append(docs, document.Document{
						Content:  thought,
						Source:   "working_memory",
						Metadata: map[string]any{"session_id": p.SessionID},
					})
				}
			}
		}
	}

	return Successful(docs, metadata, start)
}

// patternDocument renders a pattern map as a prose Document.
func patternDocument(pattern map[string]any) document.Document {
	category, _ := pattern["category"].(string)
	approach, _ := pattern["approach"].(string)
	reasoning, _ := pattern["reasoning"].(string)

	content := fmt.Sprintf(
		"Previously successful approach for %s questions: %s.", category, approach)
	if reasoning != "" {
		content += " Reasoning: " + snippet(reasoning, 300)
	}

	meta := map[string]any{"origin": "procedural_memory"}
	if id, ok := pattern["id"].(string); ok {
		meta["pattern_id"] = id
	}
	if category != "" {
		meta["category"] = category
	}
	meta["success_score"] = fmt.Sprintf("%v", pattern["success_score"])
	meta["usage_count"] = fmt.Sprintf("%v", pattern["usage_count"])

	score, _ := pattern["success_score"].(float64)
	return document.Document{
		Content:        content,
		Source:         "procedural_memory",
		Metadata:       meta,
		RelevanceScore: score,
	}
}

var _ Tool = (*MemoryRetrievalTool)(nil)
