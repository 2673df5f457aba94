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

// Package guard filters retrieved documents before they reach the
// learner: toxicity scoring, policy compliance, rule-based
// sanitization, and a quality gate, in that order. Each stage only
// shrinks the list; an empty list short-circuits the rest.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

// ErrAllFiltered reports that the pipeline removed every document.
var ErrAllFiltered = errors.New("content guard filtered all documents")

// Report carries per-stage counters for one pipeline run.
type Report struct {
	Input            int
	ToxicityFiltered int
	PolicyFiltered   int
	QualityFiltered  int
	Output           int
	// AvgToxicity is the mean toxicity score over every checked
	// document, survivors and filtered alike.
	AvgToxicity float64
	Elapsed     time.Duration
}

// Guard is the four-stage document filter.
type Guard struct {
	cfg    config.ContentGuardConfig
	router *model.Router
}

// New creates a guard.
func New(cfg config.ContentGuardConfig, router *model.Router) *Guard {
	return &Guard{cfg: cfg, router: router}
}

// Filter runs the stages over the documents. When the guard is
// disabled the documents pass through untouched, with no verdicts set.
// The returned slice holds the survivors with their per-stage verdicts:
// every survivor of an enabled guard carries ContentGuarded and
// QualityPassed true and a toxicity score below the threshold. Report
// counts what each stage removed.
func (g *Guard) Filter(ctx context.Context, docs []document.Document) ([]document.CleanDocument, Report, error) {
	start := time.Now()
	report := Report{Input: len(docs)}

	if !g.cfg.Enabled {
		out := make([]document.CleanDocument, len(docs))
		for i, d := range docs {
			out[i] = document.CleanDocument{Document: d}
		}
		report.Output = len(docs)
		report.Elapsed = time.Since(start)
		return out, report, nil
	}
	if len(docs) == 0 {
		report.Elapsed = time.Since(start)
		return nil, report, nil
	}

	kept, avg := g.toxicityStage(ctx, docs)
	report.AvgToxicity = avg
	report.ToxicityFiltered = len(docs) - len(kept)
	if len(kept) == 0 {
		report.Elapsed = time.Since(start)
		return nil, report, ErrAllFiltered
	}

	afterPolicy := g.policyStage(ctx, kept)
	report.PolicyFiltered = len(kept) - len(afterPolicy)
	if len(afterPolicy) == 0 {
		report.Elapsed = time.Since(start)
		return nil, report, ErrAllFiltered
	}

	sanitized := g.sanitizeStage(afterPolicy)

	final := g.qualityStage(sanitized)
	report.QualityFiltered = len(sanitized) - len(final)
	report.Output = len(final)
	report.Elapsed = time.Since(start)

	if len(final) == 0 {
		return nil, report, ErrAllFiltered
	}

	slog.Debug("content guard finished",
		"input", report.Input,
		"output", report.Output,
		"toxicity_filtered", report.ToxicityFiltered,
		"policy_filtered", report.PolicyFiltered,
		"quality_filtered", report.QualityFiltered)
	return final, report, nil
}
