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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/observability"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

// ErrDegraded marks a memory backend that has been switched to its
// in-process fallback after a failure. Operations still succeed; the
// error only signals reduced durability.
var ErrDegraded = errors.New("memory backend degraded")

// sessionSearchLimit bounds how many steps a backend read returns.
const sessionSearchLimit = 256

// WorkingStore holds per-session reasoning steps. Steps live in the
// vector backend so a session can be resumed by another process, with
// an in-process mirror that takes over permanently once the backend
// fails. The degraded flag is sticky: a flapping backend would
// otherwise interleave two histories.
type WorkingStore struct {
	provider   vector.Provider
	embedder   embedder.Embedder
	collection string
	ttl        time.Duration

	// metrics may be nil; set through Manager.InstrumentWith.
	metrics *observability.Metrics

	mu       sync.Mutex
	degraded bool
	steps    map[string][]map[string]any
	touched  map[string]time.Time
}

// NewWorkingStore creates a working-memory store over the given
// backend. ttl controls how long idle sessions survive cleanup.
func NewWorkingStore(provider vector.Provider, emb embedder.Embedder, collection string, ttl time.Duration) *WorkingStore {
	return &WorkingStore{
		provider:   provider,
		embedder:   emb,
		collection: collection,
		ttl:        ttl,
		steps:      make(map[string][]map[string]any),
		touched:    make(map[string]time.Time),
	}
}

// AppendStep records one reasoning step for a session. Backend
// failures degrade the store instead of failing the caller.
func (s *WorkingStore) AppendStep(ctx context.Context, sessionID string, step map[string]any) error {
	if sessionID == "" {
		return fmt.Errorf("working memory: session id is required")
	}

	s.mu.Lock()
	index := len(s.steps[sessionID])
	entry := make(map[string]any, len(step)+3)
	for k, v := range step {
		entry[k] = v
	}
	entry["session_id"] = sessionID
	entry["step_index"] = index
	entry["timestamp"] = time.Now().UTC().Unix()
	s.steps[sessionID] = append(s.steps[sessionID], entry)
	s.touched[sessionID] = time.Now()
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		return nil
	}

	thought, _ := entry["thought"].(string)
	if thought == "" {
		thought = fmt.Sprintf("step %d", index)
	}
	vec, err := s.embedder.Embed(ctx, thought)
	if err != nil {
		s.degrade("embed", err)
		return nil
	}

	metadata := make(map[string]any, len(entry)+1)
	for k, v := range entry {
		metadata[k] = v
	}
	metadata["content"] = thought

	id := fmt.Sprintf("%s-%d", sessionID, index)
	if err := s.provider.Upsert(ctx, s.collection, id, vec, metadata); err != nil {
		s.degrade("upsert", err)
	}
	return nil
}

// GetSessionContext returns the session's steps in append order. The
// in-process mirror is authoritative for sessions this process has
// written; the backend is consulted only for sessions it has not seen.
func (s *WorkingStore) GetSessionContext(ctx context.Context, sessionID string) ([]map[string]any, error) {
	s.mu.Lock()
	if local, ok := s.steps[sessionID]; ok {
		out := make([]map[string]any, len(local))
		copy(out, local)
		s.mu.Unlock()
		return out, nil
	}
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, "session "+sessionID)
	if err != nil {
		s.degrade("embed", err)
		return nil, nil
	}
	hits, err := s.provider.SearchWithFilter(ctx, s.collection, vec, sessionSearchLimit,
		map[string]any{"session_id": sessionID})
	if err != nil {
		s.degrade("search", err)
		return nil, nil
	}

	steps := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		steps = append(steps, hit.Metadata)
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return metaInt(steps[i], "step_index") < metaInt(steps[j], "step_index")
	})
	return steps, nil
}

// ClearSession forgets a session everywhere.
func (s *WorkingStore) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.steps, sessionID)
	delete(s.touched, sessionID)
	degraded := s.degraded
	s.mu.Unlock()

	if degraded {
		return nil
	}
	if err := s.provider.DeleteByFilter(ctx, s.collection, map[string]any{"session_id": sessionID}); err != nil {
		s.degrade("delete", err)
	}
	return nil
}

// CleanupOldSessions drops sessions idle longer than the TTL and
// returns how many were removed.
func (s *WorkingStore) CleanupOldSessions(ctx context.Context) int {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []string
	for id, last := range s.touched {
		if last.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if err := s.ClearSession(ctx, id); err != nil {
			slog.Warn("working memory cleanup failed", "session_id", id, "error", err)
		}
	}
	return len(expired)
}

// Degraded reports whether the store has fallen back to in-process
// storage.
func (s *WorkingStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

func (s *WorkingStore) degrade(op string, err error) {
	s.mu.Lock()
	already := s.degraded
	s.degraded = true
	s.mu.Unlock()
	if !already {
		slog.Warn("working memory degraded to in-process storage",
			"op", op, "error", errors.Join(ErrDegraded, err))
		if s.metrics != nil {
			s.metrics.RecordMemoryDegraded("working")
		}
	}
}
