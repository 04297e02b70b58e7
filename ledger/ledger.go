// Package ledger persists per-session usage totals in PostgreSQL.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ZaguanLabs/potlai"
)

// SessionUsage maps potlai_session_usage. One row per closed session.
type SessionUsage struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	SessionID        string    `gorm:"column:session_id;type:uuid;not null;uniqueIndex"`
	Model            string    `gorm:"column:model;type:text;not null"`
	TargetLang       string    `gorm:"column:target_lang;type:text;not null"`
	Requests         int64     `gorm:"column:requests;not null;default:0"`
	PromptTokens     int64     `gorm:"column:prompt_tokens;not null;default:0"`
	CompletionTokens int64     `gorm:"column:completion_tokens;not null;default:0"`
	CostUSD          float64   `gorm:"column:cost_usd;not null;default:0"`
	StartedAt        time.Time `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt       time.Time `gorm:"column:finished_at;type:timestamptz;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamptz;not null"`
}

func (SessionUsage) TableName() string { return "potlai_session_usage" }

// Store writes session reports. It implements potlai.UsageRecorder.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn, checks the connection and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("ledger DSN is empty")
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get gorm sql db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(gdb)
	if err := s.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("auto-migrate schema: %w", err)
	}
	return s, nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the usage table.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&SessionUsage{})
}

// RecordUsage inserts one row for report.
func (s *Store) RecordUsage(ctx context.Context, report potlai.SessionReport) error {
	row := newRecord(report)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert session usage %s: %w", report.SessionID, err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newRecord(report potlai.SessionReport) SessionUsage {
	return SessionUsage{
		SessionID:        report.SessionID,
		Model:            report.Model,
		TargetLang:       report.TargetLang,
		Requests:         report.Usage.Requests,
		PromptTokens:     report.Usage.PromptTokens,
		CompletionTokens: report.Usage.CompletionTokens,
		CostUSD:          potlai.EstimateCost(report.Model, report.Usage),
		StartedAt:        report.StartedAt.UTC(),
		FinishedAt:       report.FinishedAt.UTC(),
	}
}

var _ potlai.UsageRecorder = (*Store)(nil)
