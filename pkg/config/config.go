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

// Package config holds the configuration surface of the generation core.
//
// Configuration is loaded from a YAML file, with credentials taken from
// the environment. Every section has defaults; a zero Config with
// defaults applied is a working local setup (chromem vector store,
// sqlite relational store).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Models       ModelsConfig       `yaml:"models"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Vector       VectorConfig       `yaml:"vector"`
	Database     DatabaseConfig     `yaml:"database"`
	ToT          ToTConfig          `yaml:"tot"`
	AdaptiveRAG  AdaptiveRAGConfig  `yaml:"adaptive_rag"`
	Corrective   CorrectiveConfig   `yaml:"corrective_rag"`
	WebSearch    WebSearchConfig    `yaml:"web_search"`
	WebScraper   WebScraperConfig   `yaml:"web_scraper"`
	ContentGuard ContentGuardConfig `yaml:"content_guard"`
	Memory       MemoryConfig       `yaml:"memory"`
	Validation   ValidationConfig   `yaml:"validation"`
	LogLevel     string             `yaml:"log_level"`
}

// ModelEndpointConfig describes one OpenAI-compatible chat endpoint.
type ModelEndpointConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutS    int     `yaml:"timeout_s"`
	MaxRetries  int     `yaml:"max_retries"`
}

// APIKey resolves the credential from the environment.
func (c *ModelEndpointConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// Timeout returns the per-call timeout as a duration.
func (c *ModelEndpointConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutS) * time.Second
}

// ModelsConfig partitions tasks between the two tiers.
type ModelsConfig struct {
	Expensive ModelEndpointConfig `yaml:"expensive"`
	Cheap     ModelEndpointConfig `yaml:"cheap"`
}

// EmbedderConfig describes the OpenAI-compatible embeddings endpoint.
type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	Dimension int    `yaml:"dimension"`
	TimeoutS  int    `yaml:"timeout_s"`
}

// APIKey resolves the credential from the environment.
func (c *EmbedderConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// VectorConfig selects and configures the vector store backend.
type VectorConfig struct {
	// Provider is "qdrant" or "chromem".
	Provider string `yaml:"provider"`

	Qdrant struct {
		Host   string `yaml:"host"`
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key,omitempty"`
		UseTLS bool   `yaml:"use_tls,omitempty"`
	} `yaml:"qdrant"`

	Chromem struct {
		PersistPath string `yaml:"persist_path,omitempty"`
		Compress    bool   `yaml:"compress,omitempty"`
	} `yaml:"chromem"`

	// Collection names for the three logical stores.
	CorpusCollection     string `yaml:"corpus_collection"`
	WorkingCollection    string `yaml:"working_collection"`
	ProceduralCollection string `yaml:"procedural_collection"`
}

// DatabaseConfig configures the write-through relational store.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3".
	Driver string `yaml:"driver"`
	// DSN is the driver connection string.
	DSN string `yaml:"dsn"`
	// Disabled turns write-through logging off entirely.
	Disabled bool `yaml:"disabled,omitempty"`
}

// ToTConfig drives the tree-of-thoughts search loop.
type ToTConfig struct {
	MaxDepth              int     `yaml:"max_depth"`
	BranchingFactor       int     `yaml:"branching_factor"`
	CompletenessThreshold float64 `yaml:"completeness_threshold"`
	PromiseThreshold      float64 `yaml:"promise_threshold"`
	DeadEndRelevance      float64 `yaml:"dead_end_relevance"`
	DeadEndQuality        float64 `yaml:"dead_end_quality"`
}

// MaxIterations caps the search loop at depth x branching.
func (c *ToTConfig) MaxIterations() int {
	return c.MaxDepth * c.BranchingFactor
}

// AdaptiveRAGConfig tunes strategy selection and rank fusion.
type AdaptiveRAGConfig struct {
	// SimpleThreshold is the word-count cutoff below which a query is
	// considered simple (tfidf strategy).
	SimpleThreshold int `yaml:"simple_threshold"`
	// ComplexThreshold is the character-length cutoff above which a
	// query is considered complex (hybrid strategy).
	ComplexThreshold int `yaml:"complex_threshold"`
	// RRFKConstant is the smoothing constant C in 1/(C+rank).
	RRFKConstant int `yaml:"rrf_k_constant"`
	// TFIDFIndexPath points at the persisted character n-gram index.
	TFIDFIndexPath string `yaml:"tfidf_index_path"`
	// DefaultK is the number of documents returned when k is omitted.
	DefaultK int `yaml:"default_k"`
}

// CorrectiveConfig tunes the relevance filter.
type CorrectiveConfig struct {
	MinRelevance float64 `yaml:"min_relevance"`
	BatchSize    int     `yaml:"batch_size"`
	TimeoutS     int     `yaml:"timeout_s"`
}

// WebSearchConfig configures the metasearch transport and filtering.
type WebSearchConfig struct {
	BaseURL      string             `yaml:"base_url"`
	FallbackURLs []string           `yaml:"fallback_urls"`
	TimeoutS     int                `yaml:"timeout_s"`
	RetryCount   int                `yaml:"retry_count"`
	ResultsLimit int                `yaml:"results_limit"`
	Blacklist    []string           `yaml:"blacklist"`
	Priorities   map[string]float64 `yaml:"priorities"`
}

// WebScraperConfig configures fetch and parse policy.
type WebScraperConfig struct {
	TimeoutS         int      `yaml:"timeout_s"`
	ExtendedTimeoutS int      `yaml:"extended_timeout_s"`
	BatchSize        int      `yaml:"batch_size"`
	MaxLength        int      `yaml:"max_length"`
	UserAgents       []string `yaml:"user_agents"`
	RemoveTags       []string `yaml:"remove_tags"`
	ContentSelectors []string `yaml:"content_selectors"`
}

// ContentGuardConfig configures the four-stage filter.
type ContentGuardConfig struct {
	Enabled            bool    `yaml:"enabled"`
	ToxicityThreshold  float64 `yaml:"toxicity_threshold"`
	ToxicityBatchSize  int     `yaml:"toxicity_batch_size"`
	PolicyCheckEnabled bool    `yaml:"policy_check_enabled"`
	SanitizeMaxLength  int     `yaml:"sanitize_max_length"`
	MinLength          int     `yaml:"min_length"`
	MaxLength          int     `yaml:"max_length"`
	MinSentences       int     `yaml:"min_sentences"`
}

// MemoryConfig configures working and procedural memory policy.
type MemoryConfig struct {
	WorkingTTLHours           int     `yaml:"working_ttl_hours"`
	ProceduralMinSuccessScore float64 `yaml:"procedural_min_success_score"`
	ProceduralMaxPatterns     int     `yaml:"procedural_max_patterns"`
	SaveThreshold             float64 `yaml:"save_threshold"`
}

// WorkingTTL returns the session TTL as a duration.
func (c *MemoryConfig) WorkingTTL() time.Duration {
	return time.Duration(c.WorkingTTLHours) * time.Hour
}

// ValidationConfig configures the input validator.
type ValidationConfig struct {
	Enabled        bool `yaml:"enabled"`
	MinInputLength int  `yaml:"min_input_length"`
	MaxInputLength int  `yaml:"max_input_length"`
	TimeoutS       int  `yaml:"timeout_s"`
	// ModelAssisted enables the cheap-model validation pass after the
	// pattern scan.
	ModelAssisted bool `yaml:"model_assisted"`
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills in zero values section by section.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	setModelDefaults(&c.Models.Expensive, "gpt-4o", 60)
	setModelDefaults(&c.Models.Cheap, "gpt-4o-mini", 5)

	if c.Embedder.BaseURL == "" {
		c.Embedder.BaseURL = "https://api.openai.com/v1"
	}
	if c.Embedder.Model == "" {
		c.Embedder.Model = "text-embedding-3-small"
	}
	if c.Embedder.Dimension == 0 {
		c.Embedder.Dimension = 1536
	}
	if c.Embedder.TimeoutS == 0 {
		c.Embedder.TimeoutS = 30
	}

	if c.Vector.Provider == "" {
		c.Vector.Provider = "chromem"
	}
	if c.Vector.Qdrant.Host == "" {
		c.Vector.Qdrant.Host = "localhost"
	}
	if c.Vector.Qdrant.Port == 0 {
		c.Vector.Qdrant.Port = 6334
	}
	if c.Vector.CorpusCollection == "" {
		c.Vector.CorpusCollection = "dsa_corpus"
	}
	if c.Vector.WorkingCollection == "" {
		c.Vector.WorkingCollection = "working_memory"
	}
	if c.Vector.ProceduralCollection == "" {
		c.Vector.ProceduralCollection = "procedural_patterns"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite3"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "dsa_agent.db"
	}

	if c.ToT.MaxDepth == 0 {
		c.ToT.MaxDepth = 5
	}
	if c.ToT.BranchingFactor == 0 {
		c.ToT.BranchingFactor = 3
	}
	if c.ToT.CompletenessThreshold == 0 {
		c.ToT.CompletenessThreshold = 0.85
	}
	if c.ToT.PromiseThreshold == 0 {
		c.ToT.PromiseThreshold = 0.5
	}
	if c.ToT.DeadEndRelevance == 0 {
		c.ToT.DeadEndRelevance = 0.3
	}
	if c.ToT.DeadEndQuality == 0 {
		c.ToT.DeadEndQuality = 0.3
	}

	if c.AdaptiveRAG.SimpleThreshold == 0 {
		c.AdaptiveRAG.SimpleThreshold = 12
	}
	if c.AdaptiveRAG.ComplexThreshold == 0 {
		c.AdaptiveRAG.ComplexThreshold = 200
	}
	if c.AdaptiveRAG.RRFKConstant == 0 {
		c.AdaptiveRAG.RRFKConstant = 60
	}
	if c.AdaptiveRAG.DefaultK == 0 {
		c.AdaptiveRAG.DefaultK = 5
	}

	if c.Corrective.MinRelevance == 0 {
		c.Corrective.MinRelevance = 0.6
	}
	if c.Corrective.BatchSize == 0 {
		c.Corrective.BatchSize = 10
	}
	if c.Corrective.TimeoutS == 0 {
		c.Corrective.TimeoutS = 10
	}

	if c.WebSearch.TimeoutS == 0 {
		c.WebSearch.TimeoutS = 10
	}
	if c.WebSearch.RetryCount == 0 {
		c.WebSearch.RetryCount = 2
	}
	if c.WebSearch.ResultsLimit == 0 {
		c.WebSearch.ResultsLimit = 5
	}
	if c.WebSearch.Priorities == nil {
		c.WebSearch.Priorities = map[string]float64{
			"edu":           1.0,
			"gov":           0.9,
			"org":           0.8,
			"wikipedia":     0.8,
			"habr":          0.7,
			"stackoverflow": 0.7,
			"com":           0.5,
			"ru":            0.5,
		}
	}

	if c.WebScraper.TimeoutS == 0 {
		c.WebScraper.TimeoutS = 10
	}
	if c.WebScraper.ExtendedTimeoutS == 0 {
		c.WebScraper.ExtendedTimeoutS = 20
	}
	if c.WebScraper.BatchSize == 0 {
		c.WebScraper.BatchSize = 5
	}
	if c.WebScraper.MaxLength == 0 {
		c.WebScraper.MaxLength = 8000
	}
	if len(c.WebScraper.UserAgents) == 0 {
		c.WebScraper.UserAgents = defaultUserAgents
	}
	if len(c.WebScraper.RemoveTags) == 0 {
		c.WebScraper.RemoveTags = []string{
			"script", "style", "nav", "header", "footer",
			"aside", "iframe", "noscript",
		}
	}
	if len(c.WebScraper.ContentSelectors) == 0 {
		c.WebScraper.ContentSelectors = []string{
			"article", "main", "#content", ".content", ".post", ".article-body",
		}
	}

	// The guard and the validator are on unless explicitly disabled
	// through the Disable helpers; a bool zero value cannot express
	// "unset" in YAML.
	c.ContentGuard.Enabled = true
	c.ContentGuard.PolicyCheckEnabled = true
	if c.ContentGuard.ToxicityThreshold == 0 {
		c.ContentGuard.ToxicityThreshold = 0.7
	}
	if c.ContentGuard.ToxicityBatchSize == 0 {
		c.ContentGuard.ToxicityBatchSize = 10
	}
	if c.ContentGuard.SanitizeMaxLength == 0 {
		c.ContentGuard.SanitizeMaxLength = 6000
	}
	if c.ContentGuard.MinLength == 0 {
		c.ContentGuard.MinLength = 50
	}
	if c.ContentGuard.MaxLength == 0 {
		c.ContentGuard.MaxLength = 10000
	}
	if c.ContentGuard.MinSentences == 0 {
		c.ContentGuard.MinSentences = 2
	}

	if c.Memory.WorkingTTLHours == 0 {
		c.Memory.WorkingTTLHours = 24
	}
	if c.Memory.ProceduralMinSuccessScore == 0 {
		c.Memory.ProceduralMinSuccessScore = 0.7
	}
	if c.Memory.ProceduralMaxPatterns == 0 {
		c.Memory.ProceduralMaxPatterns = 3
	}
	if c.Memory.SaveThreshold == 0 {
		c.Memory.SaveThreshold = 0.80
	}

	c.Validation.Enabled = true
	if c.Validation.MinInputLength == 0 {
		c.Validation.MinInputLength = 3
	}
	if c.Validation.MaxInputLength == 0 {
		c.Validation.MaxInputLength = 2000
	}
	if c.Validation.TimeoutS == 0 {
		c.Validation.TimeoutS = 5
	}
}

// DisableContentGuard turns the guard pipeline into a pass-through.
func (c *Config) DisableContentGuard() {
	c.ContentGuard.Enabled = false
}

// DisableValidation turns the input validator off.
func (c *Config) DisableValidation() {
	c.Validation.Enabled = false
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.ToT.MaxDepth < 0 {
		return fmt.Errorf("tot.max_depth must be >= 0, got %d", c.ToT.MaxDepth)
	}
	if c.ToT.BranchingFactor < 1 {
		return fmt.Errorf("tot.branching_factor must be >= 1, got %d", c.ToT.BranchingFactor)
	}
	for name, v := range map[string]float64{
		"tot.completeness_threshold": c.ToT.CompletenessThreshold,
		"tot.promise_threshold":      c.ToT.PromiseThreshold,
		"tot.dead_end_relevance":     c.ToT.DeadEndRelevance,
		"tot.dead_end_quality":       c.ToT.DeadEndQuality,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	switch c.Vector.Provider {
	case "qdrant", "chromem":
	default:
		return fmt.Errorf("unsupported vector provider: %s", c.Vector.Provider)
	}
	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Validation.MinInputLength >= c.Validation.MaxInputLength {
		return fmt.Errorf("validation.min_input_length must be below max_input_length")
	}
	return nil
}

func setModelDefaults(c *ModelEndpointConfig, model string, timeoutS int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2000
	}
	if c.TimeoutS == 0 {
		c.TimeoutS = timeoutS
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}
