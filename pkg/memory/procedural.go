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

package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/observability"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

// Pattern is one remembered reasoning approach: which tools, in what
// order, solved questions of a category, and how well.
type Pattern struct {
	ID           string
	Query        string
	Category     string
	Approach     string
	Reasoning    string
	SuccessScore float64
	UsageCount   int
	PathLength   int
	CreatedAt    time.Time
}

// ProceduralStore persists patterns in the vector backend and answers
// similarity lookups against them. Unlike working memory there is no
// in-process fallback: a degraded backend skips writes and returns
// ErrDegraded on reads, because stale or partial pattern sets would
// silently bias future searches.
type ProceduralStore struct {
	provider   vector.Provider
	embedder   embedder.Embedder
	collection string

	// metrics may be nil; set through Manager.InstrumentWith.
	metrics *observability.Metrics

	mu       sync.Mutex
	degraded bool
	known    map[string]Pattern // patterns this process saved or read, for usage bumps
}

// NewProceduralStore creates a pattern store over the given backend.
func NewProceduralStore(provider vector.Provider, emb embedder.Embedder, collection string) *ProceduralStore {
	return &ProceduralStore{
		provider:   provider,
		embedder:   emb,
		collection: collection,
		known:      make(map[string]Pattern),
	}
}

// SavePattern stores a pattern. When the backend is degraded the write
// is logged and skipped; pattern loss is acceptable, blocking a
// generation on it is not.
func (s *ProceduralStore) SavePattern(ctx context.Context, p Pattern) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.known[p.ID] = p
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		slog.Warn("procedural memory degraded, pattern not persisted",
			"pattern_id", p.ID, "category", p.Category)
		return nil
	}

	vec, err := s.embedder.Embed(ctx, p.Query+" "+p.Reasoning)
	if err != nil {
		s.degrade("embed", err)
		return nil
	}
	if err := s.provider.Upsert(ctx, s.collection, p.ID, vec, patternMetadata(p)); err != nil {
		s.degrade("upsert", err)
	}
	return nil
}

// FindSimilarPatterns returns up to limit patterns similar to the
// query with a success score at or above the floor, most similar
// first.
func (s *ProceduralStore) FindSimilarPatterns(ctx context.Context, query string, limit int, minSuccessScore float64) ([]map[string]any, error) {
	s.mu.Lock()
	degraded := s.degraded
	s.mu.Unlock()
	if degraded {
		return nil, ErrDegraded
	}
	if limit <= 0 {
		limit = 3
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.degrade("embed", err)
		return nil, fmt.Errorf("procedural memory: %w", err)
	}
	// over-fetch so the score floor does not starve the result
	hits, err := s.provider.Search(ctx, s.collection, vec, limit*2)
	if err != nil {
		s.degrade("search", err)
		return nil, fmt.Errorf("procedural memory: %w", err)
	}

	patterns := make([]map[string]any, 0, limit)
	for _, hit := range hits {
		p := patternFromMetadata(hit.ID, hit.Metadata)
		if p.SuccessScore < minSuccessScore {
			continue
		}

		s.mu.Lock()
		if _, seen := s.known[p.ID]; !seen {
			s.known[p.ID] = p
		}
		s.mu.Unlock()

		patterns = append(patterns, map[string]any{
			"id":            p.ID,
			"query":         p.Query,
			"category":      p.Category,
			"approach":      p.Approach,
			"reasoning":     p.Reasoning,
			"success_score": p.SuccessScore,
			"usage_count":   p.UsageCount,
			"path_length":   p.PathLength,
			"similarity":    float64(hit.Score),
		})
		if len(patterns) == limit {
			break
		}
	}
	return patterns, nil
}

// IncrementUsage bumps a pattern's usage counter and re-persists it.
// Unknown IDs are logged and ignored.
func (s *ProceduralStore) IncrementUsage(ctx context.Context, id string) error {
	s.mu.Lock()
	p, ok := s.known[id]
	if ok {
		p.UsageCount++
		s.known[id] = p
	}
	s.mu.Unlock()

	if !ok {
		slog.Debug("usage bump for unknown pattern", "pattern_id", id)
		return nil
	}
	return s.SavePattern(ctx, p)
}

// Degraded reports whether the backend has failed.
func (s *ProceduralStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *ProceduralStore) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		slog.Warn("procedural memory degraded", "op", op, "error", err)
		if s.metrics != nil {
			s.metrics.RecordMemoryDegraded("procedural")
		}
	}
}

func patternMetadata(p Pattern) map[string]any {
	return map[string]any{
		"content":       p.Reasoning,
		"query":         p.Query,
		"category":      p.Category,
		"approach":      p.Approach,
		"reasoning":     p.Reasoning,
		"success_score": p.SuccessScore,
		"usage_count":   p.UsageCount,
		"path_length":   p.PathLength,
		"created_at":    p.CreatedAt.Unix(),
	}
}

// patternFromMetadata tolerates stringified values: the embedded
// backend stores every metadata field as a string.
func patternFromMetadata(id string, m map[string]any) Pattern {
	return Pattern{
		ID:           id,
		Query:        metaString(m, "query"),
		Category:     metaString(m, "category"),
		Approach:     metaString(m, "approach"),
		Reasoning:    metaString(m, "reasoning"),
		SuccessScore: metaFloat(m, "success_score"),
		UsageCount:   metaInt(m, "usage_count"),
		PathLength:   metaInt(m, "path_length"),
		CreatedAt:    time.Unix(int64(metaInt(m, "created_at")), 0).UTC(),
	}
}
