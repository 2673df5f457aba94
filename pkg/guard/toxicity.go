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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

// blacklistHitWeight is added per blacklisted word in the last-resort
// scan, capped at 1.0.
const blacklistHitWeight = 0.3

// toxicityBlacklist is the last-resort word scan used when both batch
// and per-document model scoring fail.
var toxicityBlacklist = []string{
	"идиот", "дебил", "тупой", "ненавижу", "убей", "сдохни",
	"stupid", "idiot", "moron", "hate you", "kill yourself",
}

type toxicityVerdict struct {
	IsSafe        bool     `json:"is_safe"`
	ToxicityScore float64  `json:"toxicity_score"`
	Issues        []string `json:"issues"`
}

// toxicityStage keeps documents whose toxicity score is below the
// threshold and records the score on each survivor. The second return
// is the mean score over every checked document. Scoring degrades:
// batch, then per-document, then the blacklist scan.
func (g *Guard) toxicityStage(ctx context.Context, docs []document.Document) ([]document.CleanDocument, float64) {
	batchSize := g.cfg.ToxicityBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	var total float64
	kept := make([]document.CleanDocument, 0, len(docs))
	for lo := 0; lo < len(docs); lo += batchSize {
		hi := lo + batchSize
		if hi > len(docs) {
			hi = len(docs)
		}
		batch := docs[lo:hi]

		verdicts, err := g.scoreToxicityBatch(ctx, batch)
		if err != nil {
			slog.Warn("batch toxicity scoring failed, scoring per document", "error", err)
			verdicts = make([]toxicityVerdict, len(batch))
			for i, doc := range batch {
				verdict, err := g.scoreToxicityOne(ctx, doc)
				if err != nil {
					verdict = blacklistVerdict(doc.Content)
				}
				verdicts[i] = verdict
			}
		}

		for i, doc := range batch {
			total += verdicts[i].ToxicityScore
			if verdicts[i].ToxicityScore < g.cfg.ToxicityThreshold {
				kept = append(kept, document.CleanDocument{
					Document:      doc,
					ToxicityScore: verdicts[i].ToxicityScore,
				})
			}
		}
	}

	avg := 0.0
	if len(docs) > 0 {
		avg = total / float64(len(docs))
	}
	return kept, avg
}

func (g *Guard) scoreToxicityBatch(ctx context.Context, docs []document.Document) ([]toxicityVerdict, error) {
	var sb strings.Builder
	sb.WriteString("Rate each document for toxicity. Reply with only a JSON array of objects ")
	sb.WriteString(`{"is_safe": bool, "toxicity_score": number in [0,1], "issues": [strings]}, one per document, in order.`)
	sb.WriteString("\n\n")
	for i, doc := range docs {
		fmt.Fprintf(&sb, "Document %d:\n%s\n\n", i+1, truncateRunes(doc.Content, 500))
	}

	reply, err := g.router.Invoke(ctx, model.TaskToxicityCheck, sb.String())
	if err != nil {
		return nil, err
	}

	verdicts, err := parseVerdictArray(reply)
	if err != nil {
		return nil, err
	}
	if len(verdicts) != len(docs) {
		return nil, fmt.Errorf("expected %d verdicts, got %d", len(docs), len(verdicts))
	}
	return verdicts, nil
}

func (g *Guard) scoreToxicityOne(ctx context.Context, doc document.Document) (toxicityVerdict, error) {
	prompt := fmt.Sprintf(
		`Rate this document for toxicity. Reply with only a JSON object {"is_safe": bool, "toxicity_score": number in [0,1], "issues": [strings]}.`+
			"\n\n%s", truncateRunes(doc.Content, 500))

	reply, err := g.router.Invoke(ctx, model.TaskToxicityCheck, prompt)
	if err != nil {
		return toxicityVerdict{}, err
	}

	open := strings.Index(reply, "{")
	close_ := strings.LastIndex(reply, "}")
	if open < 0 || close_ <= open {
		return toxicityVerdict{}, fmt.Errorf("no JSON object in reply")
	}
	var verdict toxicityVerdict
	if err := json.Unmarshal([]byte(reply[open:close_+1]), &verdict); err != nil {
		return toxicityVerdict{}, fmt.Errorf("bad verdict: %w", err)
	}
	verdict.ToxicityScore = clamp01(verdict.ToxicityScore)
	return verdict, nil
}

// blacklistVerdict scores by blacklisted-word hits.
func blacklistVerdict(content string) toxicityVerdict {
	lower := strings.ToLower(content)
	score := 0.0
	var issues []string
	for _, word := range toxicityBlacklist {
		if strings.Contains(lower, word) {
			score += blacklistHitWeight
			issues = append(issues, word)
		}
	}
	if score > 1 {
		score = 1
	}
	return toxicityVerdict{
		IsSafe:        score < 0.5,
		ToxicityScore: score,
		Issues:        issues,
	}
}

func parseVerdictArray(reply string) ([]toxicityVerdict, error) {
	open := strings.Index(reply, "[")
	close_ := strings.LastIndex(reply, "]")
	if open < 0 || close_ <= open {
		return nil, fmt.Errorf("no JSON array in reply")
	}
	var verdicts []toxicityVerdict
	if err := json.Unmarshal([]byte(reply[open:close_+1]), &verdicts); err != nil {
		return nil, fmt.Errorf("bad verdict array: %w", err)
	}
	for i := range verdicts {
		verdicts[i].ToxicityScore = clamp01(verdicts[i].ToxicityScore)
	}
	return verdicts, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
