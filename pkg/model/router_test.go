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

package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierExpensive, TierFor(TaskThoughtGeneration))
	assert.Equal(t, TierExpensive, TierFor(TaskFinalSynthesis))

	for _, task := range []Task{
		TaskPromiseEvaluation, TaskNodeEvaluation, TaskRelevanceScoring,
		TaskPolicyCheck, TaskToxicityCheck, TaskInputValidation,
	} {
		assert.Equal(t, TierCheap, TierFor(task), task.String())
	}
}

func TestRouter_Invoke(t *testing.T) {
	expensive := NewMockModel("expensive says hi")
	cheap := NewMockModel("cheap says hi")
	router := NewRouterWithModels(expensive, cheap)

	t.Run("routes by task", func(t *testing.T) {
		out, err := router.Invoke(context.Background(), TaskThoughtGeneration, "think")
		require.NoError(t, err)
		assert.Equal(t, "expensive says hi", out)

		out, err = router.Invoke(context.Background(), TaskPromiseEvaluation, "score")
		require.NoError(t, err)
		assert.Equal(t, "cheap says hi", out)
	})

	t.Run("records calls per tier", func(t *testing.T) {
		rec := NewCallRecorder()
		ctx := WithRecorder(context.Background(), rec)

		_, _ = router.Invoke(ctx, TaskThoughtGeneration, "a")
		_, _ = router.Invoke(ctx, TaskPromiseEvaluation, "b")
		_, _ = router.Invoke(ctx, TaskToxicityCheck, "c")

		counts := rec.Counts()
		assert.Equal(t, 1, counts[TierExpensive])
		assert.Equal(t, 2, counts[TierCheap])
	})

	t.Run("no recorder is fine", func(t *testing.T) {
		_, err := router.Invoke(context.Background(), TaskPolicyCheck, "d")
		assert.NoError(t, err)
	})
}

func TestCallRecorder_Concurrent(t *testing.T) {
	rec := NewCallRecorder()
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				rec.Record(TierCheap)
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Equal(t, 800, rec.Counts()[TierCheap])
}

func TestRetry(t *testing.T) {
	t.Run("returns first success", func(t *testing.T) {
		calls := 0
		out, err := Retry(context.Background(), 3, 0, func(ctx context.Context) (string, error) {
			calls++
			if calls < 2 {
				return "", ErrUnavailable
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns last error when exhausted", func(t *testing.T) {
		_, err := Retry(context.Background(), 2, 0, func(ctx context.Context) (int, error) {
			return 0, ErrUnavailable
		})
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_, err := Retry(ctx, 5, 0, func(ctx context.Context) (int, error) {
			calls++
			return 0, ErrUnavailable
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
