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

// Command dsa-agent answers one data-structures-and-algorithms question
// end to end: tree search over the research tools, final synthesis,
// memory and write-through persistence.
//
// Usage:
//
//	dsa-agent -config config.yaml "Как работает быстрая сортировка?"
//	dsa-agent -level advanced -metrics :9090 "Что такое АВЛ-дерево?"
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/embedder"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/guard"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/logger"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/memory"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/model"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/observability"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/pipeline"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/storage"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tool"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/tot"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/validation"
	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/vector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "path to YAML config (defaults apply when empty)")
		userID      = flag.String("user", "local", "user identifier for memory context")
		userLevel   = flag.String("level", "beginner", "student level: beginner, intermediate, advanced")
		metricsAddr = flag.String("metrics", "", "address to expose Prometheus metrics on (empty = off)")
		logFile     = flag.String("log-file", "", "append logs to this file instead of stderr")
		timeout     = flag.Duration("timeout", 5*time.Minute, "overall request deadline")
	)
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		return fmt.Errorf("no query given; usage: dsa-agent [flags] \"question\"")
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	logOutput := os.Stderr
	if *logFile != "" {
		f, closeLog, err := logger.OpenLogFile(*logFile)
		if err != nil {
			return fmt.Errorf("log file: %w", err)
		}
		defer closeLog()
		logOutput = f
	}
	logger.Init(logger.ParseLevel(cfg.LogLevel), logOutput)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	provider, err := vector.New(cfg.Vector)
	if err != nil {
		return fmt.Errorf("vector store: %w", err)
	}
	defer provider.Close()

	emb := embedder.NewOpenAIEmbedder(cfg.Embedder)
	defer emb.Close()

	var store *storage.Store
	if !cfg.Database.Disabled {
		store, err = storage.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("relational store: %w", err)
		}
		defer store.Close()
	}

	router := model.NewRouter(cfg.Models)
	mem := memory.NewManager(cfg, provider, emb)
	mem.InstrumentWith(metrics)

	registry := tool.NewDefaultRegistry(tool.Deps{
		Config:   cfg,
		Router:   router,
		Embedder: emb,
		Vector:   provider,
		Patterns: mem.Procedural,
		Sessions: mem.Working,
	})

	orchestrator := tot.New(cfg.ToT, tot.Options{
		Reasoning:  tot.NewReasoningChain(router, registry),
		Evaluation: tot.NewEvaluationChain(router),
		Registry:   registry,
		Guard:      guard.New(cfg.ContentGuard, router),
		Working:    mem.Working,
		Metrics:    metrics,
	})

	generator := pipeline.New(cfg, pipeline.Options{
		Validator:    validation.New(cfg.Validation, router),
		Memory:       mem,
		Orchestrator: orchestrator,
		Router:       router,
		Store:        store,
	})

	material, err := generator.Generate(ctx, pipeline.Request{
		Query:     query,
		UserID:    *userID,
		UserLevel: *userLevel,
	})
	if err != nil {
		return err
	}

	printMaterial(material)

	if removed := mem.Working.CleanupOldSessions(context.Background()); removed > 0 {
		slog.Debug("expired working sessions removed", "count", removed)
	}
	return nil
}

func printMaterial(m *pipeline.Material) {
	fmt.Println(m.Content)
	fmt.Println()
	fmt.Printf("— category: %s, completeness: %.2f, iterations: %d, tools: %s, elapsed: %s\n",
		m.Category, m.Completeness, m.Iterations,
		strings.Join(m.ToolsUsed, ", "), m.Elapsed.Round(time.Millisecond))
	if len(m.Sources) > 0 {
		fmt.Printf("— sources: %d documents\n", len(m.Sources))
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint up", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Warn("metrics endpoint stopped", "error", err)
	}
}
