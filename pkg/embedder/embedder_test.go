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

package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

func embedServer(t *testing.T, handler func(req embedRequest) embedResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(handler(req)))
	}))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := embedServer(t, func(req embedRequest) embedResponse {
		var resp embedResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1, 2}, Index: i})
		}
		return resp
	})
	defer srv.Close()

	e := NewOpenAIEmbedder(config.EmbedderConfig{
		BaseURL: srv.URL, Model: "test-embed", Dimension: 3, TimeoutS: 5,
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2}, vec)
}

func TestOpenAIEmbedder_EmbedBatch_RestoresOrder(t *testing.T) {
	srv := embedServer(t, func(req embedRequest) embedResponse {
		// Answer in reverse to exercise index-based reordering.
		var resp embedResponse
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i)}, Index: i})
		}
		return resp
	})
	defer srv.Close()

	e := NewOpenAIEmbedder(config.EmbedderConfig{
		BaseURL: srv.URL, Model: "test-embed", Dimension: 1, TimeoutS: 5,
	})

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{0}, vecs[0])
	assert.Equal(t, []float32{1}, vecs[1])
	assert.Equal(t, []float32{2}, vecs[2])
}

func TestOpenAIEmbedder_EmbedBatch_Empty(t *testing.T) {
	e := NewOpenAIEmbedder(config.EmbedderConfig{BaseURL: "http://unused", TimeoutS: 1})
	vecs, err := e.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := NewMockEmbedder(8)

	a1, err := m.Embed(context.Background(), "binary search")
	require.NoError(t, err)
	a2, err := m.Embed(context.Background(), "binary search")
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), "graph traversal")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 8)
}
