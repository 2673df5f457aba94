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

package guard

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

const policyPrompt = `Does the following text comply with a policy for educational content
about algorithms and data structures (no personal attacks, no calls to violence,
no adult content, no unrelated advertising)? Answer with only YES or NO.

`

// policyStage drops documents the cheap model marks non-compliant and
// marks the survivors compliant. Model failure assumes compliance: the
// pipeline must never drop everything because the policy endpoint is
// unreachable.
func (g *Guard) policyStage(ctx context.Context, docs []document.CleanDocument) []document.CleanDocument {
	if !g.cfg.PolicyCheckEnabled {
		for i := range docs {
			docs[i].PolicyCompliant = true
		}
		return docs
	}

	kept := make([]document.CleanDocument, 0, len(docs))
	for _, doc := range docs {
		reply, err := g.router.Invoke(ctx, model.TaskPolicyCheck,
			policyPrompt+truncateRunes(doc.Content, 800))
		if err != nil {
			slog.Warn("policy check unavailable, assuming compliant; flagged for manual review",
				"source", doc.Source, "error", err)
			doc.PolicyCompliant = true
			kept = append(kept, doc)
			continue
		}

		answer := strings.ToUpper(strings.TrimSpace(reply))
		if strings.HasPrefix(answer, "NO") {
			continue
		}
		doc.PolicyCompliant = true
		kept = append(kept, doc)
	}
	return kept
}
