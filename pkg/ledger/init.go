// Package ledger persists per-round metrics and finalized model versions.
// It is the coordinator's only persistence collaborator and is written to by
// a single writer at well-defined round checkpoints.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	ErrDBConnection     = errors.New("database connection error")
	ErrDBQuery          = errors.New("database query error")
	ErrDuplicateRound   = errors.New("round metric already recorded")
	ErrDuplicateVersion = errors.New("model version already exists")
	ErrVersionNotFound  = errors.New("model version not found")
	ErrMetricNotFound   = errors.New("round metric not found")
)

// RoundMetric is the append-only per-round record.
type RoundMetric struct {
	RoundNumber    int       `db:"round_number"    json:"round_number"`
	AvgAccuracy    float64   `db:"avg_accuracy"    json:"avg_accuracy"`
	AvgLoss        float64   `db:"avg_loss"        json:"avg_loss"`
	NumClients     int       `db:"num_clients"     json:"num_clients"`
	AvgUncertainty float64   `db:"avg_uncertainty" json:"avg_uncertainty"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// ModelVersion is the immutable record created once at the final round.
type ModelVersion struct {
	VersionNumber int       `db:"version_number" json:"version_number"`
	AvgAccuracy   float64   `db:"avg_accuracy"   json:"avg_accuracy"`
	AvgLoss       float64   `db:"avg_loss"       json:"avg_loss"`
	Description   string    `db:"description"    json:"description"`
	FilePath      string    `db:"file_path"      json:"file_path"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
}

// Store is the interface the coordinator consumes. Duplicate round or
// version numbers are deterministically rejected, never silently updated.
type Store interface {
	RecordRoundMetric(ctx context.Context, m RoundMetric) error
	GetRoundMetric(ctx context.Context, round int) (RoundMetric, error)
	ListRoundMetrics(ctx context.Context, offset, limit uint64) ([]RoundMetric, uint64, error)

	CreateModelVersion(ctx context.Context, v ModelVersion) error
	GetModelVersion(ctx context.Context, version int) (ModelVersion, error)
	ListModelVersions(ctx context.Context, offset, limit uint64) ([]ModelVersion, uint64, error)

	Close() error
}

// Database wraps the sqlite handle.
type Database struct {
	*sqlx.DB
}

// NewDatabase opens (or creates) the ledger database and applies migrations.
func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	database := &Database{DB: db}

	if err := database.migrate(); err != nil {
		return nil, err
	}

	return database, nil
}

func (db *Database) migrate() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "1_create_ledger_tables",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS fl_round_metrics (
						round_number INTEGER PRIMARY KEY,
						avg_accuracy REAL NOT NULL,
						avg_loss REAL NOT NULL,
						num_clients INTEGER NOT NULL,
						avg_uncertainty REAL NOT NULL,
						created_at TIMESTAMP NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS model_versions (
						version_number INTEGER PRIMARY KEY,
						avg_accuracy REAL NOT NULL,
						avg_loss REAL NOT NULL,
						description TEXT NOT NULL,
						file_path TEXT NOT NULL,
						created_at TIMESTAMP NOT NULL
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS fl_round_metrics`,
					`DROP TABLE IF EXISTS model_versions`,
				},
			},
		},
	}

	if _, err := migrate.Exec(db.DB.DB, "sqlite3", migrations, migrate.Up); err != nil {
		return fmt.Errorf("ledger migration failed: %w", err)
	}

	return nil
}

func isConstraintErr(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}

	return false
}
