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

package tool

import (
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

// Deps carries everything the standard tool set needs.
type Deps struct {
	Config   *config.Config
	Router   *model.Router
	Embedder embedder.Embedder
	Vector   vector.Provider
	Patterns PatternFinder
	Sessions SessionReader
}

// NewDefaultRegistry wires the standard tool set with its aliases.
// Construction is lazy; a tool whose backend is down only fails when
// first executed.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	cfg := deps.Config

	scraper := NewWebScraperTool(cfg.WebScraper)

	r.Register("adaptive_rag_search", func() Tool {
		return NewAdaptiveRAGTool(cfg.AdaptiveRAG, deps.Embedder, deps.Vector,
			cfg.Vector.CorpusCollection)
	})
	r.Register("corrective_check", func() Tool {
		return NewCorrectiveTool(cfg.Corrective, deps.Router)
	})
	r.Register("web_search", func() Tool {
		return NewWebSearchTool(cfg.WebSearch, scraper)
	})
	r.Register("web_scraper", func() Tool {
		return scraper
	})
	r.Register("concept_extractor", func() Tool {
		return NewConceptExtractorTool(deps.Embedder)
	})
	r.Register("memory_retrieval", func() Tool {
		return NewMemoryRetrievalTool(deps.Patterns, deps.Sessions,
			cfg.Memory.ProceduralMinSuccessScore)
	})

	r.Alias("adaptive_rag", "adaptive_rag_search")
	r.Alias("corrective_rag", "corrective_check")
	r.Alias("scraper", "web_scraper")
	r.Alias("concepts", "concept_extractor")
	r.Alias("memory", "memory_retrieval")

	return r
}
