package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"TradePilot/internal/domain/models"
	domrepo "TradePilot/internal/domain/repository"
	pkgch "TradePilot/pkg/clickhouse"
	applogger "TradePilot/pkg/logger"
)

const trainingTable = "tradepilot.training_examples"

var trainingSchema = []string{
	`CREATE DATABASE IF NOT EXISTS tradepilot`,
	`CREATE TABLE IF NOT EXISTS ` + trainingTable + ` (
		closed_at  DateTime64(3),
		symbol     LowCardinality(String),
		timeframe  LowCardinality(String),
		direction  LowCardinality(String),
		profit     Float64,
		label      UInt8,
		features   String
	) ENGINE = MergeTree()
	ORDER BY (symbol, timeframe, closed_at)`,
}

// CHTrainingStore implements TrainingStore backed by ClickHouse. Closed
// trades are appended as they arrive and read back oldest-first so the
// walk-forward split sees them in time order.
type CHTrainingStore struct {
	db *sql.DB
	ch *pkgch.Client
	l  *applogger.Logger
}

func NewCHTrainingStore(ch *pkgch.Client, l *applogger.Logger) *CHTrainingStore {
	return &CHTrainingStore{db: ch.DB(), ch: ch, l: l}
}

func (s *CHTrainingStore) Init(ctx context.Context) error {
	if err := s.ch.InitSchema(ctx, trainingSchema); err != nil {
		return fmt.Errorf("init training schema: %w", err)
	}
	return nil
}

func (s *CHTrainingStore) Append(ctx context.Context, ex *models.TrainingExample) error {
	return s.AppendBatch(ctx, []*models.TrainingExample{ex})
}

func (s *CHTrainingStore) AppendBatch(ctx context.Context, exs []*models.TrainingExample) error {
	if len(exs) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO "+trainingTable+" (closed_at, symbol, timeframe, direction, profit, label, features) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ex := range exs {
		featJSON, err := json.Marshal(ex.Features)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode features: %w", err)
		}
		closedAt := ex.ClosedAt
		if closedAt.IsZero() {
			closedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			closedAt, ex.Symbol, ex.Timeframe, ex.Direction,
			ex.Profit, uint8(ex.Label), string(featJSON)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert example: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.l.Debug("training examples appended",
		applogger.Int("rows", len(exs)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// GetTrainingExamples returns up to limit most recent examples for the key,
// reordered oldest-first. An empty direction matches all directions.
func (s *CHTrainingStore) GetTrainingExamples(ctx context.Context, symbol, timeframe, direction string, limit int) ([]models.TrainingExample, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 2000
	}

	q := `SELECT closed_at, symbol, timeframe, direction, profit, label, features
		FROM ` + trainingTable + `
		WHERE symbol = ? AND timeframe = ?`
	args := []any{symbol, timeframe}
	if direction != "" && direction != string(models.DirectionCombined) {
		q += " AND direction = ?"
		args = append(args, direction)
	}
	q += " ORDER BY closed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("training example query error",
			applogger.String("symbol", symbol),
			applogger.String("timeframe", timeframe),
			applogger.Error(err))
		return nil, fmt.Errorf("get training examples: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrainingExample, 0, limit)
	for rows.Next() {
		var ex models.TrainingExample
		var label uint8
		var featJSON string
		if err := rows.Scan(&ex.ClosedAt, &ex.Symbol, &ex.Timeframe, &ex.Direction,
			&ex.Profit, &label, &featJSON); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		ex.Label = int(label)
		if err := json.Unmarshal([]byte(featJSON), &ex.Features); err != nil {
			// A single corrupt row must not sink the whole batch.
			s.l.Warn("skipping example with corrupt feature payload",
				applogger.String("symbol", ex.Symbol), applogger.Error(err))
			continue
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	// DESC + LIMIT keeps the newest rows; reverse to ASC for training.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	s.l.Info("training examples fetched",
		applogger.String("symbol", symbol),
		applogger.String("timeframe", timeframe),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHTrainingStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

func (s *CHTrainingStore) Close() error {
	return s.ch.Close()
}

var _ domrepo.TrainingStore = (*CHTrainingStore)(nil)
