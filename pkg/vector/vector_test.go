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

package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

func TestChromemProvider_UpsertAndSearch(t *testing.T) {
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	require.NoError(t, p.Upsert(ctx, "corpus", "a", []float32{1, 0, 0},
		map[string]any{"content": "binary search", "category": "sorting"}))
	require.NoError(t, p.Upsert(ctx, "corpus", "b", []float32{0, 1, 0},
		map[string]any{"content": "dijkstra", "category": "graphs"}))

	results, err := p.Search(ctx, "corpus", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "binary search", results[0].Content)

	t.Run("filter narrows hits", func(t *testing.T) {
		results, err := p.SearchWithFilter(ctx, "corpus", []float32{1, 0, 0}, 2,
			map[string]any{"category": "graphs"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "b", results[0].ID)
	})

	t.Run("topK above collection size", func(t *testing.T) {
		results, err := p.Search(ctx, "corpus", []float32{1, 0, 0}, 50)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("delete by id", func(t *testing.T) {
		require.NoError(t, p.Delete(ctx, "corpus", "b"))
		results, err := p.Search(ctx, "corpus", []float32{0, 1, 0}, 5)
		require.NoError(t, err)
		for _, r := range results {
			assert.NotEqual(t, "b", r.ID)
		}
	})
}

func TestChromemProvider_EmptyCollection(t *testing.T) {
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)
	defer p.Close()

	results, err := p.Search(context.Background(), "empty", []float32{1, 0}, 5)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemProvider_Persistence(t *testing.T) {
	dir := t.TempDir()

	p, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	require.NoError(t, p.Upsert(context.Background(), "corpus", "a",
		[]float32{1, 0}, map[string]any{"content": "hash tables"}))
	require.NoError(t, p.Close())

	reopened, err := NewChromemProvider(ChromemConfig{PersistPath: dir})
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(context.Background(), "corpus", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hash tables", results[0].Content)
}

func TestMockProvider_Ranking(t *testing.T) {
	m := NewMockProvider()
	ctx := context.Background()

	require.NoError(t, m.Upsert(ctx, "c", "far", []float32{0, 1}, map[string]any{"content": "far"}))
	require.NoError(t, m.Upsert(ctx, "c", "near", []float32{1, 0.1}, map[string]any{"content": "near"}))

	results, err := m.Search(ctx, "c", []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ID)
	assert.Equal(t, "far", results[1].ID)

	t.Run("upsert replaces in place", func(t *testing.T) {
		require.NoError(t, m.Upsert(ctx, "c", "near", []float32{0.5, 0.5}, map[string]any{"content": "moved"}))
		assert.Equal(t, 2, m.Count("c"))
	})
}

func TestNew_SelectsProvider(t *testing.T) {
	cfg := config.Default()

	p, err := New(cfg.Vector)
	require.NoError(t, err)
	assert.Equal(t, "chromem", p.Name())
	assert.NoError(t, p.Close())

	cfg.Vector.Provider = "nope"
	_, err = New(cfg.Vector)
	assert.Error(t, err)
}
