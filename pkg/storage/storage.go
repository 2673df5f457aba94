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

// Package storage persists generation history and usage statistics in
// a relational database. Writes are write-through: the pipeline calls
// them after the fact and a failure here never fails a generation, it
// is logged and dropped.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	// Supported drivers for the write-through store.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ZUB3C/dsa-learning-agent-sub000/pkg/config"
)

// Store wraps the relational database.
type Store struct {
	db     *sql.DB
	driver string
}

// GenerationRecord is one completed material generation.
type GenerationRecord struct {
	ID           string
	Query        string
	Category     string
	Material     string
	Completeness float64
	Iterations   int
	Duration     time.Duration
	CreatedAt    time.Time
}

// NodeRecord is one explored search-tree node.
type NodeRecord struct {
	GenerationID string
	NodeID       string
	ParentID     string
	Depth        int
	Thought      string
	Tool         string
	Status       string
	Promise      float64
	Relevance    float64
	Quality      float64
	Completeness float64
}

// GuardRecord is one content-guard stage outcome.
type GuardRecord struct {
	GenerationID string
	Stage        string
	Filtered     int
	Reason       string
}

// PatternRecord mirrors a procedural-memory pattern for relational
// queries and backup.
type PatternRecord struct {
	ID           string
	Query        string
	Category     string
	Approach     string
	SuccessScore float64
	UsageCount   int
}

// Open connects to the configured database and ensures the schema.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, driver: cfg.Driver}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS material_generations (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		category TEXT NOT NULL,
		material TEXT NOT NULL,
		completeness REAL NOT NULL,
		iterations INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tot_node_logs (
		id TEXT PRIMARY KEY,
		generation_id TEXT NOT NULL,
		node_id TEXT NOT NULL,
		parent_id TEXT,
		depth INTEGER NOT NULL,
		thought TEXT,
		tool TEXT,
		status TEXT NOT NULL,
		promise REAL,
		relevance REAL,
		quality REAL,
		completeness REAL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tool_usage_stats (
		tool TEXT NOT NULL,
		day TEXT NOT NULL,
		executions INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		total_duration_ms INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (tool, day)
	)`,
	`CREATE TABLE IF NOT EXISTS content_guard_logs (
		id TEXT PRIMARY KEY,
		generation_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		filtered INTEGER NOT NULL,
		reason TEXT,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS procedural_patterns (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		category TEXT NOT NULL,
		approach TEXT NOT NULL,
		success_score REAL NOT NULL,
		usage_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveGeneration records a completed generation.
func (s *Store) SaveGeneration(ctx context.Context, rec GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO material_generations
		(id, query, category, material, completeness, iterations, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Query, rec.Category, rec.Material,
		rec.Completeness, rec.Iterations, rec.Duration.Milliseconds(), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save generation: %w", err)
	}
	return nil
}

// SaveNodes records the explored tree of one generation.
func (s *Store) SaveNodes(ctx context.Context, nodes []NodeRecord) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin node log transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := s.rebind(
		`INSERT INTO tot_node_logs
		(id, generation_id, node_id, parent_id, depth, thought, tool, status,
		 promise, relevance, quality, completeness, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	now := time.Now().UTC()
	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, stmt,
			uuid.New().String(), n.GenerationID, n.NodeID, n.ParentID,
			n.Depth, n.Thought, n.Tool, n.Status,
			n.Promise, n.Relevance, n.Quality, n.Completeness, now); err != nil {
			return fmt.Errorf("failed to save node log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit node logs: %w", err)
	}
	return nil
}

// BumpToolUsage upserts the per-tool, per-day usage counters.
func (s *Store) BumpToolUsage(ctx context.Context, tool string, failed bool, duration time.Duration) error {
	day := time.Now().UTC().Format("2006-01-02")
	failures := 0
	if failed {
		failures = 1
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO tool_usage_stats (tool, day, executions, failures, total_duration_ms)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (tool, day) DO UPDATE SET
			executions = tool_usage_stats.executions + 1,
			failures = tool_usage_stats.failures + excluded.failures,
			total_duration_ms = tool_usage_stats.total_duration_ms + excluded.total_duration_ms`),
		tool, day, failures, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to bump tool usage: %w", err)
	}
	return nil
}

// SaveGuardLog records one guard stage outcome.
func (s *Store) SaveGuardLog(ctx context.Context, rec GuardRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO content_guard_logs (id, generation_id, stage, filtered, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		uuid.New().String(), rec.GenerationID, rec.Stage, rec.Filtered, rec.Reason,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save guard log: %w", err)
	}
	return nil
}

// SavePattern mirrors a procedural pattern into the relational store.
func (s *Store) SavePattern(ctx context.Context, rec PatternRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO procedural_patterns
		(id, query, category, approach, success_score, usage_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			success_score = excluded.success_score,
			usage_count = excluded.usage_count`),
		rec.ID, rec.Query, rec.Category, rec.Approach,
		rec.SuccessScore, rec.UsageCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save pattern: %w", err)
	}
	return nil
}

// Patterns reads back the mirrored patterns of one category, best
// first.
func (s *Store) Patterns(ctx context.Context, category string) ([]PatternRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, query, category, approach, success_score, usage_count
		FROM procedural_patterns WHERE category = ?
		ORDER BY success_score DESC`),
		category)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	defer rows.Close()

	var recs []PatternRecord
	for rows.Next() {
		var rec PatternRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Category, &rec.Approach,
			&rec.SuccessScore, &rec.UsageCount); err != nil {
			return nil, fmt.Errorf("failed to read patterns: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// ToolUsage reads back one day's counters for a tool.
func (s *Store) ToolUsage(ctx context.Context, tool string, day string) (executions, failures int, err error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT executions, failures FROM tool_usage_stats WHERE tool = ? AND day = ?`),
		tool, day)
	if err := row.Scan(&executions, &failures); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to read tool usage: %w", err)
	}
	return executions, failures, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind converts ? placeholders to $N for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
