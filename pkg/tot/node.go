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

// Package tot runs the tree-of-thoughts search: a best-first DFS over
// reasoning steps where the expensive model proposes branches, the
// cheap model prices and judges them, and tools gather the evidence.
package tot

import (
	"time"

	"github.com/google/uuid"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tool"
)

// Status is a node's position in its lifecycle.
type Status string

const (
	StatusPending     Status = "PENDING"
	StatusExecuting   Status = "EXECUTING"
	StatusExecuted    Status = "EXECUTED"
	StatusPromising   Status = "PROMISING"
	StatusDeadEnd     Status = "DEAD_END"
	StatusGoalReached Status = "GOAL_REACHED"
)

// TreeNode is one reasoning step: a planned tool action plus the
// evidence accumulated up to it. Parent linkage is by ID only; the
// orchestrator keeps an id→node index for path tracing.
type TreeNode struct {
	ID         string
	ParentID   string
	Depth      int
	Thought    string
	Reasoning  string
	ToolName   string
	ToolParams map[string]any
	ToolResult *tool.Result

	// Collected is this node's own copy of the evidence. A child
	// starts from a copy of its parent's slice and only appends.
	Collected []document.Document

	Promise      float64
	Completeness float64
	Relevance    float64
	Quality      float64

	Status    Status
	Children  []string
	Visited   bool
	CreatedAt time.Time
	// ExecutionTime is the wall time of the node's tool call.
	ExecutionTime time.Duration
}

// newRoot creates the empty seed node of a search.
func newRoot() *TreeNode {
	return &TreeNode{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// newChild creates a PENDING child that inherits the parent's
// collected documents by copy.
func newChild(parent *TreeNode, reasoning, toolName string, toolParams map[string]any) *TreeNode {
	collected := make([]document.Document, len(parent.Collected))
	copy(collected, parent.Collected)

	return &TreeNode{
		ID:         uuid.NewString(),
		ParentID:   parent.ID,
		Depth:      parent.Depth + 1,
		Thought:    reasoning,
		Reasoning:  reasoning,
		ToolName:   toolName,
		ToolParams: toolParams,
		Collected:  collected,
		Status:     StatusPending,
		CreatedAt:  time.Now().UTC(),
	}
}

// NodeEvaluation is the post-execution verdict on a node.
type NodeEvaluation struct {
	Completeness   float64
	Relevance      float64
	Quality        float64
	ShouldContinue bool
}

// Result is the outcome of one search.
type Result struct {
	// BestPath is ordered root → best solution.
	BestPath []*TreeNode
	// Explored lists every node ever popped, in pop order.
	Explored []*TreeNode
	// Collected is the best solution's accumulated evidence.
	Collected []document.Document

	FinalCompleteness float64
	Iterations        int
	ToolsUsed         []string
	Elapsed           time.Duration
	ModelCalls        map[model.Tier]int
	// GuardFiltered totals documents dropped per guard stage across
	// the whole search.
	GuardFiltered map[string]int
}
