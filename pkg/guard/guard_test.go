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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/document"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
)

// goodContent passes the quality gate: long enough, multi-sentence.
const goodContent = "Быстрая сортировка выбирает опорный элемент и разделяет массив. " +
	"Затем обе части сортируются рекурсивно. Средняя сложность составляет O(n log n)."

func guardWith(t *testing.T, cheap *model.MockModel) *Guard {
	t.Helper()
	router := model.NewRouterWithModels(model.NewMockModel("unused"), cheap)
	return New(config.Default().ContentGuard, router)
}

func doc(content string) document.Document {
	return document.Document{Content: content, Source: "corpus"}
}

func TestGuard_Disabled_PassesThrough(t *testing.T) {
	cfg := config.Default()
	cfg.DisableContentGuard()
	cheap := model.NewFailingModel(model.ErrUnavailable)
	g := New(cfg.ContentGuard, model.NewRouterWithModels(cheap, cheap))

	docs := []document.Document{doc("anything"), doc("at all")}
	out, report, err := g.Filter(context.Background(), docs)

	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, docs[0], out[0].Document)
	assert.Equal(t, docs[1], out[1].Document)
	assert.False(t, out[0].ContentGuarded, "pass-through documents carry no verdict")
	assert.Equal(t, 2, report.Output)
	assert.Zero(t, cheap.CallCount(), "disabled guard must not call models")
}

func TestGuard_EmptyInput_ShortCircuits(t *testing.T) {
	cheap := model.NewMockModel()
	g := guardWith(t, cheap)

	out, report, err := g.Filter(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, report.Input)
	assert.Zero(t, cheap.CallCount(), "no stage runs on empty input")
}

func TestGuard_ToxicityFiltersAboveThreshold(t *testing.T) {
	cheap := model.NewMockModel(
		// toxicity batch: second document is toxic
		`[{"is_safe":true,"toxicity_score":0.1,"issues":[]},
		  {"is_safe":false,"toxicity_score":0.9,"issues":["insults"]}]`,
		// policy for the survivor
		"YES",
	)
	g := guardWith(t, cheap)

	out, report, err := g.Filter(context.Background(),
		[]document.Document{doc(goodContent), doc(goodContent + " грубый вариант")})

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, report.ToxicityFiltered)
	assert.Equal(t, 1, report.Output)
	assert.InDelta(t, 0.5, report.AvgToxicity, 1e-9, "mean of 0.1 and 0.9 over both checked documents")
	assert.InDelta(t, 0.1, out[0].ToxicityScore, 1e-9)
}

func TestGuard_ToxicityBlacklistFallback(t *testing.T) {
	// both batch and per-doc scoring fail -> blacklist scan
	cheap := model.NewFailingModel(model.ErrUnavailable)
	g := guardWith(t, cheap)

	toxic := goodContent + " Ты идиот и дебил, я тебя ненавижу."
	out, report, err := g.Filter(context.Background(),
		[]document.Document{doc(goodContent), doc(toxic)})

	// three blacklist hits -> 0.9 >= 0.7 threshold -> dropped;
	// the clean document survives with policy assumed compliant
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 1, report.ToxicityFiltered)
}

func TestGuard_PolicyFailOpen(t *testing.T) {
	calls := 0
	cheap := &model.MockModel{Handler: func(prompt string) (string, error) {
		calls++
		if calls == 1 {
			// toxicity batch succeeds
			return `[{"is_safe":true,"toxicity_score":0.0,"issues":[]}]`, nil
		}
		// policy endpoint down
		return "", model.ErrUnavailable
	}}
	g := guardWith(t, cheap)

	out, _, err := g.Filter(context.Background(), []document.Document{doc(goodContent)})

	require.NoError(t, err)
	assert.Len(t, out, 1, "policy failure assumes compliance")
}

func TestGuard_PolicyDropsNonCompliant(t *testing.T) {
	cheap := model.NewMockModel(
		`[{"is_safe":true,"toxicity_score":0.0,"issues":[]},
		  {"is_safe":true,"toxicity_score":0.0,"issues":[]}]`,
		"YES",
		"NO",
	)
	g := guardWith(t, cheap)

	out, report, err := g.Filter(context.Background(),
		[]document.Document{doc(goodContent), doc(goodContent + " про другое.")})

	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, 1, report.PolicyFiltered)
}

func TestGuard_SanitizeStripsHTMLOnlyForWebDocs(t *testing.T) {
	g := guardWith(t, model.NewMockModel())

	webDoc := document.Document{
		Content:  "<p>Первое предложение про стек. Второе предложение про очередь. " + goodContent + "</p>",
		Source:   "https://example.org/page",
		Metadata: map[string]any{"origin": "web_scraper"},
	}
	corpusDoc := doc("Запись вида a < b и b > c сохраняется. " + goodContent)

	out := g.sanitizeStage([]document.CleanDocument{{Document: webDoc}, {Document: corpusDoc}})

	assert.NotContains(t, out[0].Content, "<p>")
	assert.True(t, out[0].Sanitized)
	assert.Contains(t, out[1].Content, "a < b", "non-web content keeps angle brackets")
}

func TestGuard_SanitizeRemovesSuspiciousURLsAndEmails(t *testing.T) {
	g := guardWith(t, model.NewMockModel())

	in := doc("Пишите на admin@example.com или качайте https://bit.ly/xyz тут. " + goodContent)
	out := g.sanitizeStage([]document.CleanDocument{{Document: in}})

	assert.NotContains(t, out[0].Content, "admin@example.com")
	assert.NotContains(t, out[0].Content, "bit.ly")
	assert.Contains(t, out[0].Content, "Быстрая сортировка")
	assert.True(t, out[0].Sanitized)
}

func TestGuard_QualityGate(t *testing.T) {
	g := guardWith(t, model.NewMockModel())

	t.Run("too short", func(t *testing.T) {
		assert.False(t, g.passesQuality("Коротко."))
	})
	t.Run("single sentence", func(t *testing.T) {
		assert.False(t, g.passesQuality(strings.Repeat("слово ", 20)))
	})
	t.Run("mostly urls", func(t *testing.T) {
		urls := strings.Repeat("https://example.org/very/long/path/segment ", 5)
		assert.False(t, g.passesQuality("Смотри ссылки. Вот они. "+urls))
	})
	t.Run("good content", func(t *testing.T) {
		assert.True(t, g.passesQuality(goodContent))
	})
}

func TestGuard_AllFiltered(t *testing.T) {
	cheap := model.NewMockModel(
		`[{"is_safe":false,"toxicity_score":1.0,"issues":["bad"]}]`,
	)
	g := guardWith(t, cheap)

	out, report, err := g.Filter(context.Background(), []document.Document{doc(goodContent)})

	assert.ErrorIs(t, err, ErrAllFiltered)
	assert.Empty(t, out)
	assert.Equal(t, 1, report.ToxicityFiltered)
}

func TestGuard_SurvivorVerdicts(t *testing.T) {
	cheap := model.NewMockModel(
		`[{"is_safe":true,"toxicity_score":0.2,"issues":[]}]`,
		"YES",
	)
	g := guardWith(t, cheap)

	out, report, err := g.Filter(context.Background(), []document.Document{doc(goodContent)})

	require.NoError(t, err)
	require.Len(t, out, 1)
	cd := out[0]
	assert.True(t, cd.ContentGuarded)
	assert.True(t, cd.PolicyCompliant)
	assert.True(t, cd.QualityPassed)
	assert.Less(t, cd.ToxicityScore, g.cfg.ToxicityThreshold)
	assert.InDelta(t, 0.2, report.AvgToxicity, 1e-9)
}

func TestGuard_RecordsCheapCalls(t *testing.T) {
	cheap := model.NewMockModel(
		`[{"is_safe":true,"toxicity_score":0.0,"issues":[]}]`,
		"YES",
	)
	g := guardWith(t, cheap)

	rec := model.NewCallRecorder()
	ctx := model.WithRecorder(context.Background(), rec)
	_, _, err := g.Filter(ctx, []document.Document{doc(goodContent)})

	require.NoError(t, err)
	assert.Equal(t, 2, rec.Counts()[model.TierCheap], "toxicity batch + policy check")
	assert.Zero(t, rec.Counts()[model.TierExpensive])
}
