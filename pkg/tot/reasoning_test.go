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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/memory"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

func reasoningChain(expensive model.Model) *ReasoningChain {
	router := model.NewRouterWithModels(expensive, model.NewMockModel("unused"))
	reg := stubRegistry(nil, &stubTool{name: "adaptive_rag_search"}, &stubTool{name: "web_search"})
	return NewReasoningChain(router, reg)
}

func TestGenerateThoughts_ParsesAndTruncates(t *testing.T) {
	reply := thoughtsJSON("adaptive_rag_search", "web_search", "concept_extractor")
	chain := reasoningChain(model.NewMockModel(reply))
	parent := newRoot()

	children, err := chain.GenerateThoughts(context.Background(), parent,
		"быстрая сортировка", "beginner", nil, 2)

	require.NoError(t, err)
	require.Len(t, children, 2, "proposals beyond the branching factor are dropped")
	for _, c := range children {
		assert.Equal(t, parent.ID, c.ParentID)
		assert.Equal(t, 1, c.Depth)
		assert.Equal(t, StatusPending, c.Status)
		assert.NotEmpty(t, c.ToolName)
	}
}

func TestGenerateThoughts_FencedReply(t *testing.T) {
	reply := "Here is my plan:\n```json\n" + thoughtsJSON("web_search") + "\n```\n"
	chain := reasoningChain(model.NewMockModel(reply))

	children, err := chain.GenerateThoughts(context.Background(), newRoot(),
		"сортировка", "beginner", nil, 3)

	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "web_search", children[0].ToolName)
}

func TestGenerateThoughts_ChildCopiesParentDocuments(t *testing.T) {
	chain := reasoningChain(model.NewMockModel(thoughtsJSON("web_search")))
	parent := newRoot()
	parent.Collected = corpusDocs(3)

	children, err := chain.GenerateThoughts(context.Background(), parent,
		"сортировка", "beginner", nil, 1)

	require.NoError(t, err)
	child := children[0]
	require.Len(t, child.Collected, 3)

	// the copy is independent of the parent's slice
	child.Collected = append(child.Collected, document.Document{Content: "extra"})
	assert.Len(t, parent.Collected, 3)
}

func TestGenerateThoughts_DefaultParams(t *testing.T) {
	reply := `{"thoughts": [{"reasoning": "search it", "tool_name": "web_search"}]}`
	chain := reasoningChain(model.NewMockModel(reply))

	children, err := chain.GenerateThoughts(context.Background(), newRoot(),
		"что такое куча", "beginner", nil, 1)

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "что такое куча"}, children[0].ToolParams)
}

func TestGenerateThoughts_PromptCarriesHintsAndCatalog(t *testing.T) {
	var captured string
	expensive := &model.MockModel{Handler: func(prompt string) (string, error) {
		captured = prompt
		return thoughtsJSON("adaptive_rag_search"), nil
	}}
	chain := reasoningChain(expensive)
	mc := &memory.Context{Hints: []string{
		"Previously successful approach for sorting questions (success 0.90): adaptive_rag_search -> corrective_check.",
	}}

	_, err := chain.GenerateThoughts(context.Background(), newRoot(),
		"пузырьковая сортировка", "beginner", mc, 2)

	require.NoError(t, err)
	assert.Contains(t, captured, mc.Hints[0], "hints appear verbatim")
	assert.Contains(t, captured, "adaptive_rag_search")
	assert.Contains(t, captured, "web_search")
	assert.Contains(t, captured, "пузырьковая сортировка")
}

func TestGenerateThoughts_Failures(t *testing.T) {
	t.Run("model down", func(t *testing.T) {
		chain := reasoningChain(model.NewFailingModel(model.ErrUnavailable))
		_, err := chain.GenerateThoughts(context.Background(), newRoot(), "q", "beginner", nil, 2)
		assert.ErrorIs(t, err, model.ErrUnavailable)
	})
	t.Run("garbage reply", func(t *testing.T) {
		chain := reasoningChain(model.NewMockModel("I would rather chat about something else"))
		_, err := chain.GenerateThoughts(context.Background(), newRoot(), "q", "beginner", nil, 2)
		assert.Error(t, err)
	})
	t.Run("empty thoughts", func(t *testing.T) {
		chain := reasoningChain(model.NewMockModel(`{"thoughts": []}`))
		_, err := chain.GenerateThoughts(context.Background(), newRoot(), "q", "beginner", nil, 2)
		assert.Error(t, err)
	})
	t.Run("thoughts without tool names", func(t *testing.T) {
		chain := reasoningChain(model.NewMockModel(`{"thoughts": [{"reasoning": "hmm"}]}`))
		_, err := chain.GenerateThoughts(context.Background(), newRoot(), "q", "beginner", nil, 2)
		assert.Error(t, err)
	})
}

func TestSummarizeEvidence(t *testing.T) {
	docs := []document.Document{
		{Content: "корпусный фрагмент", Source: "corpus"},
		{Content: "страница из сети", Source: "https://example.org/a"},
		{Content: "ещё корпус", Source: "corpus"},
		{Content: "последний фрагмент", Source: "corpus"},
	}

	summary := summarizeEvidence(docs, 100)

	assert.Contains(t, summary, "4 documents")
	assert.Contains(t, summary, "corpus=3")
	assert.Contains(t, summary, "web=1")
	assert.Contains(t, summary, "последний фрагмент")
	assert.NotContains(t, summary, "корпусный фрагмент", "only the last three snippets appear")

	assert.Equal(t, "(none yet)\n", summarizeEvidence(nil, 100))
	assert.NotContains(t, summarizeEvidence(docs, 0), "последний фрагмент",
		"zero snippet length drops snippets")
}

func TestCountTokens(t *testing.T) {
	short := countTokens("быстрая сортировка")
	long := countTokens(strings.Repeat("быстрая сортировка работает за n log n. ", 100))

	assert.Greater(t, long, short)
	assert.Greater(t, short, 0)
}
