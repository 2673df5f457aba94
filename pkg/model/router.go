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
	"sync"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

// Tier identifies one of the two cost tiers.
type Tier string

const (
	// TierExpensive is reserved for thought generation and final
	// synthesis.
	TierExpensive Tier = "expensive"
	// TierCheap serves every evaluation and filtering task.
	TierCheap Tier = "cheap"
)

// Task names a model use within the pipeline.
type Task int

const (
	TaskThoughtGeneration Task = iota
	TaskPromiseEvaluation
	TaskNodeEvaluation
	TaskRelevanceScoring
	TaskPolicyCheck
	TaskToxicityCheck
	TaskInputValidation
	TaskFinalSynthesis
)

// String returns the task name used in logs and metrics labels.
func (t Task) String() string {
	switch t {
	case TaskThoughtGeneration:
		return "thought_generation"
	case TaskPromiseEvaluation:
		return "promise_evaluation"
	case TaskNodeEvaluation:
		return "node_evaluation"
	case TaskRelevanceScoring:
		return "relevance_scoring"
	case TaskPolicyCheck:
		return "policy_check"
	case TaskToxicityCheck:
		return "toxicity_check"
	case TaskInputValidation:
		return "input_validation"
	case TaskFinalSynthesis:
		return "final_synthesis"
	default:
		return "unknown"
	}
}

// TierFor returns the static task-to-tier partition.
func TierFor(task Task) Tier {
	switch task {
	case TaskThoughtGeneration, TaskFinalSynthesis:
		return TierExpensive
	default:
		return TierCheap
	}
}

// Router maps tasks to models and attributes call counts to the
// recorder carried in the context.
type Router struct {
	expensive Model
	cheap     Model
}

// NewRouter builds a router from the models config.
func NewRouter(cfg config.ModelsConfig) *Router {
	return &Router{
		expensive: NewOpenAIModel(cfg.Expensive),
		cheap:     NewOpenAIModel(cfg.Cheap),
	}
}

// NewRouterWithModels builds a router from pre-constructed models.
// Used by tests to inject mocks.
func NewRouterWithModels(expensive, cheap Model) *Router {
	return &Router{expensive: expensive, cheap: cheap}
}

// ModelFor returns the model serving the given task.
func (r *Router) ModelFor(task Task) Model {
	if TierFor(task) == TierExpensive {
		return r.expensive
	}
	return r.cheap
}

// Invoke routes the prompt to the task's model and records the call
// against the tier counter in ctx, if one is present.
func (r *Router) Invoke(ctx context.Context, task Task, prompt string, opts ...InvokeOption) (string, error) {
	tier := TierFor(task)
	if rec := RecorderFrom(ctx); rec != nil {
		rec.Record(tier)
	}
	return r.ModelFor(task).Invoke(ctx, prompt, opts...)
}

// CallRecorder accumulates per-tier call counts for one search.
// Safe for concurrent use (promise evaluations fan out).
type CallRecorder struct {
	mu     sync.Mutex
	counts map[Tier]int
}

// NewCallRecorder creates an empty recorder.
func NewCallRecorder() *CallRecorder {
	return &CallRecorder{counts: make(map[Tier]int)}
}

// Record increments the counter for a tier.
func (r *CallRecorder) Record(tier Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[tier]++
}

// Counts returns a copy of the per-tier counters.
func (r *CallRecorder) Counts() map[Tier]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Tier]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

type recorderKey struct{}

// WithRecorder attaches a call recorder to the context. Every
// Router.Invoke under that context counts against it.
func WithRecorder(ctx context.Context, rec *CallRecorder) context.Context {
	return context.WithValue(ctx, recorderKey{}, rec)
}

// RecorderFrom extracts the recorder, or nil.
func RecorderFrom(ctx context.Context) *CallRecorder {
	rec, _ := ctx.Value(recorderKey{}).(*CallRecorder)
	return rec
}
