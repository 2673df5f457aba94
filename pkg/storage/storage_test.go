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

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.DatabaseConfig{
		Driver: "sqlite3",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveGeneration(t *testing.T) {
	s := testStore(t)

	err := s.SaveGeneration(context.Background(), GenerationRecord{
		Query:        "Объясни быструю сортировку",
		Category:     "sorting",
		Material:     "...",
		Completeness: 0.91,
		Iterations:   4,
		Duration:     3 * time.Second,
	})
	assert.NoError(t, err)
}

func TestStore_SaveNodes(t *testing.T) {
	s := testStore(t)

	nodes := []NodeRecord{
		{GenerationID: "g1", NodeID: "root", Depth: 0, Status: "EXECUTED"},
		{GenerationID: "g1", NodeID: "n1", ParentID: "root", Depth: 1,
			Tool: "adaptive_rag_search", Status: "GOAL_REACHED", Completeness: 0.9},
	}
	assert.NoError(t, s.SaveNodes(context.Background(), nodes))
	assert.NoError(t, s.SaveNodes(context.Background(), nil))
}

func TestStore_BumpToolUsage(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	require.NoError(t, s.BumpToolUsage(ctx, "web_search", false, 120*time.Millisecond))
	require.NoError(t, s.BumpToolUsage(ctx, "web_search", true, 80*time.Millisecond))
	require.NoError(t, s.BumpToolUsage(ctx, "web_search", false, 100*time.Millisecond))

	day := time.Now().UTC().Format("2006-01-02")
	executions, failures, err := s.ToolUsage(ctx, "web_search", day)
	require.NoError(t, err)
	assert.Equal(t, 3, executions)
	assert.Equal(t, 1, failures)

	t.Run("unknown tool reads zero", func(t *testing.T) {
		executions, failures, err := s.ToolUsage(ctx, "nope", day)
		require.NoError(t, err)
		assert.Zero(t, executions)
		assert.Zero(t, failures)
	})
}

func TestStore_SavePattern_Upsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := PatternRecord{
		ID: "p1", Query: "quicksort", Category: "sorting",
		Approach: "adaptive_rag_search -> corrective_check", SuccessScore: 0.85,
	}
	require.NoError(t, s.SavePattern(ctx, rec))

	rec.UsageCount = 2
	require.NoError(t, s.SavePattern(ctx, rec))

	recs, err := s.Patterns(ctx, "sorting")
	require.NoError(t, err)
	require.Len(t, recs, 1, "same id upserts, never duplicates")
	assert.Equal(t, 2, recs[0].UsageCount)
	assert.InDelta(t, 0.85, recs[0].SuccessScore, 1e-9)
}

func TestStore_Rebind(t *testing.T) {
	s := &Store{driver: "postgres"}
	assert.Equal(t, "SELECT $1, $2", s.rebind("SELECT ?, ?"))

	s.driver = "sqlite3"
	assert.Equal(t, "SELECT ?, ?", s.rebind("SELECT ?, ?"))
}
