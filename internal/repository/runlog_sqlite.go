package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	domrepo "TradePilot/internal/domain/repository"
)

// SQLiteRunLog is the retraining audit trail. It lives in a local SQLite
// file because the history is small, operator-facing and must survive
// restarts without external infrastructure.
type SQLiteRunLog struct {
	db *gorm.DB
}

func NewSQLiteRunLog(path string) (*SQLiteRunLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if err := db.AutoMigrate(&domrepo.RetrainRun{}); err != nil {
		return nil, fmt.Errorf("migrate run log: %w", err)
	}
	return &SQLiteRunLog{db: db}, nil
}

func (r *SQLiteRunLog) Record(ctx context.Context, run *domrepo.RetrainRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("record retrain run: %w", err)
	}
	return nil
}

// History returns recent runs, newest first. An empty symbol matches all.
func (r *SQLiteRunLog) History(ctx context.Context, symbol string, limit int) ([]domrepo.RetrainRun, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var runs []domrepo.RetrainRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("retrain history: %w", err)
	}
	return runs, nil
}

var _ domrepo.RunLog = (*SQLiteRunLog)(nil)
