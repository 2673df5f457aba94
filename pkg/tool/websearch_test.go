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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

func searxServer(t *testing.T, hits []searxHit) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/web", r.URL.Path)
		assert.Equal(t, "no", r.URL.Query().Get("nsfw"))
		assert.NotEmpty(t, r.URL.Query().Get("s"))
		require.NoError(t, json.NewEncoder(w).Encode(searxResponse{Web: hits}))
	}))
}

func webSearchConfig(baseURL string) config.WebSearchConfig {
	cfg := config.Default().WebSearch
	cfg.BaseURL = baseURL
	cfg.Blacklist = []string{"spam.example"}
	return cfg
}

func TestWebSearch_PrioritySort(t *testing.T) {
	srv := searxServer(t, []searxHit{
		{Title: "blog", URL: "https://someblog.com/post", Description: "d1"},
		{Title: "course", URL: "https://algo.mit.edu/lecture", Description: "d2"},
		{Title: "wiki", URL: "https://en.wikipedia.org/wiki/Quicksort", Description: "d3"},
	})
	defer srv.Close()

	tool := NewWebSearchTool(webSearchConfig(srv.URL), nil)
	res := tool.Execute(context.Background(), map[string]any{
		"query": "quicksort", "num_results": 3,
	})

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Documents, 3)
	assert.Contains(t, res.Documents[0].Source, "edu")
	assert.Contains(t, res.Documents[1].Source, "wikipedia")
	assert.Equal(t, "web_search", res.Documents[0].Metadata["origin"])
}

func TestWebSearch_Blacklist(t *testing.T) {
	srv := searxServer(t, []searxHit{
		{Title: "spam", URL: "https://spam.example/page", Description: "d"},
		{Title: "ok", URL: "https://habr.com/ru/articles/1", Description: "d"},
	})
	defer srv.Close()

	tool := NewWebSearchTool(webSearchConfig(srv.URL), nil)
	res := tool.Execute(context.Background(), map[string]any{"query": "сортировка"})

	require.True(t, res.Success, res.Error)
	require.Len(t, res.Documents, 1)
	assert.Contains(t, res.Documents[0].Source, "habr.com")
}

func TestWebSearch_MirrorFallback(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()
	good := searxServer(t, []searxHit{
		{Title: "hit", URL: "https://ru.stackoverflow.com/q/1", Description: "d"},
	})
	defer good.Close()

	cfg := webSearchConfig(bad.URL)
	cfg.FallbackURLs = []string{good.URL}

	tool := NewWebSearchTool(cfg, nil)
	res := tool.Execute(context.Background(), map[string]any{"query": "deque"})

	require.True(t, res.Success, res.Error)
	assert.Equal(t, good.URL, res.Metadata["mirror"])
	assert.Len(t, res.Documents, 1)
}

func TestWebSearch_AllMirrorsDown(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	tool := NewWebSearchTool(webSearchConfig(bad.URL), nil)
	res := tool.Execute(context.Background(), map[string]any{"query": "heap"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "search_failed")
}

func TestWebSearch_ResultsLimit(t *testing.T) {
	srv := searxServer(t, []searxHit{
		{Title: "1", URL: "https://a.org/1", Description: "d"},
		{Title: "2", URL: "https://b.org/2", Description: "d"},
		{Title: "3", URL: "https://c.org/3", Description: "d"},
	})
	defer srv.Close()

	tool := NewWebSearchTool(webSearchConfig(srv.URL), nil)
	res := tool.Execute(context.Background(), map[string]any{
		"query": "trie", "num_results": 2,
	})

	require.True(t, res.Success, res.Error)
	assert.Len(t, res.Documents, 2)
}
