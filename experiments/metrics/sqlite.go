package metrics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex stores episode and batch records of one or more runs.
type SQLiteIndex struct {
	db  *sql.DB
	run string
}

func OpenSQLite(path, run string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db, run: run}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS episodes (
			run TEXT NOT NULL,
			episode INTEGER NOT NULL,
			phase TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			decisions INTEGER NOT NULL,
			updates INTEGER NOT NULL,
			mean_td_error REAL NOT NULL,
			reward REAL NOT NULL,
			PRIMARY KEY (run, episode)
		);`,
		`CREATE TABLE IF NOT EXISTS batches (
			run TEXT NOT NULL,
			episode INTEGER NOT NULL,
			games_played INTEGER NOT NULL,
			evaluated INTEGER NOT NULL,
			average_reward REAL NOT NULL,
			weights TEXT NOT NULL,
			PRIMARY KEY (run, episode)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteIndex) RecordEpisode(m EpisodeMetric) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO episodes
			(run, episode, phase, started_at, duration_ms, ticks, decisions, updates, mean_td_error, reward)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.run, m.Episode, m.Phase, m.StartTime.UTC().Format(time.RFC3339Nano), m.Duration.Milliseconds(),
		m.Ticks, m.Decisions, m.Updates, m.MeanTDError, m.Reward,
	)
	if err != nil {
		return fmt.Errorf("record episode %d: %w", m.Episode, err)
	}
	return nil
}

func (s *SQLiteIndex) RecordBatch(b BatchMetric) error {
	weights, err := json.Marshal(b.Weights)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO batches (run, episode, games_played, evaluated, average_reward, weights)
			VALUES (?, ?, ?, ?, ?, ?)`,
		s.run, b.Episode, b.GamesPlayed, b.Evaluated, b.AverageReward, string(weights),
	)
	if err != nil {
		return fmt.Errorf("record batch at episode %d: %w", b.Episode, err)
	}
	return nil
}

// Batches returns the batch reports of the index's run in episode order.
func (s *SQLiteIndex) Batches() ([]BatchMetric, error) {
	rows, err := s.db.Query(
		`SELECT episode, games_played, evaluated, average_reward, weights
			FROM batches WHERE run = ? ORDER BY episode`, s.run)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []BatchMetric
	for rows.Next() {
		var b BatchMetric
		var weights string
		if err := rows.Scan(&b.Episode, &b.GamesPlayed, &b.Evaluated, &b.AverageReward, &weights); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(weights), &b.Weights); err != nil {
			return nil, fmt.Errorf("batch %d weights: %w", b.Episode, err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// EpisodeCount returns how many episodes of the run were recorded.
func (s *SQLiteIndex) EpisodeCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM episodes WHERE run = ?`, s.run).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
