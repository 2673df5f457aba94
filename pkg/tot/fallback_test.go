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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
)

func TestFallbackAction_DepthIndexed(t *testing.T) {
	node := newRoot()
	node.Collected = []document.Document{{Content: "собранный текст", Source: "corpus"}}

	name, params := fallbackAction(node, "быстрая сортировка")
	assert.Equal(t, "adaptive_rag_search", name)
	assert.Equal(t, "быстрая сортировка", params["query"])

	node.Depth = 1
	name, params = fallbackAction(node, "быстрая сортировка")
	assert.Equal(t, "corrective_check", name)
	require.Contains(t, params, "documents")

	node.Depth = 2
	name, params = fallbackAction(node, "быстрая сортировка")
	assert.Equal(t, "web_search", name)
	assert.Equal(t, true, params["scrape_content"])

	node.Depth = 3
	name, params = fallbackAction(node, "быстрая сортировка")
	assert.Equal(t, "concept_extractor", name)
	assert.Equal(t, "собранный текст", params["text"])

	node.Depth = 7
	name, _ = fallbackAction(node, "быстрая сортировка")
	assert.Equal(t, "concept_extractor", name)
}

func TestFallbackAction_ConceptsUseQueryWithoutEvidence(t *testing.T) {
	node := newRoot()
	node.Depth = 3

	_, params := fallbackAction(node, "что такое рекурсия")
	assert.Equal(t, "что такое рекурсия", params["text"])
}
