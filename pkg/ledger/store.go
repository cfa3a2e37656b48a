package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type store struct {
	db *Database
}

// NewStore builds the sqlite-backed ledger store.
func NewStore(db *Database) Store {
	return &store{db: db}
}

func (s *store) RecordRoundMetric(ctx context.Context, m RoundMetric) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO fl_round_metrics (round_number, avg_accuracy, avg_loss, num_clients, avg_uncertainty, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		m.RoundNumber, m.AvgAccuracy, m.AvgLoss, m.NumClients, m.AvgUncertainty, m.CreatedAt,
	)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("%w: round %d", ErrDuplicateRound, m.RoundNumber)
		}

		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (s *store) GetRoundMetric(ctx context.Context, round int) (RoundMetric, error) {
	query := `SELECT round_number, avg_accuracy, avg_loss, num_clients, avg_uncertainty, created_at
		FROM fl_round_metrics WHERE round_number = ?`

	var m RoundMetric
	if err := s.db.GetContext(ctx, &m, query, round); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RoundMetric{}, fmt.Errorf("round %d: %w", round, ErrMetricNotFound)
		}

		return RoundMetric{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return m, nil
}

func (s *store) ListRoundMetrics(ctx context.Context, offset, limit uint64) ([]RoundMetric, uint64, error) {
	var total uint64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM fl_round_metrics`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT round_number, avg_accuracy, avg_loss, num_clients, avg_uncertainty, created_at
		FROM fl_round_metrics ORDER BY round_number LIMIT ? OFFSET ?`

	metrics := []RoundMetric{}
	if err := s.db.SelectContext(ctx, &metrics, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return metrics, total, nil
}

func (s *store) CreateModelVersion(ctx context.Context, v ModelVersion) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO model_versions (version_number, avg_accuracy, avg_loss, description, file_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		v.VersionNumber, v.AvgAccuracy, v.AvgLoss, v.Description, v.FilePath, v.CreatedAt,
	)
	if err != nil {
		if isConstraintErr(err) {
			return fmt.Errorf("%w: version %d", ErrDuplicateVersion, v.VersionNumber)
		}

		return fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return nil
}

func (s *store) GetModelVersion(ctx context.Context, version int) (ModelVersion, error) {
	query := `SELECT version_number, avg_accuracy, avg_loss, description, file_path, created_at
		FROM model_versions WHERE version_number = ?`

	var v ModelVersion
	if err := s.db.GetContext(ctx, &v, query, version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ModelVersion{}, fmt.Errorf("version %d: %w", version, ErrVersionNotFound)
		}

		return ModelVersion{}, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return v, nil
}

func (s *store) ListModelVersions(ctx context.Context, offset, limit uint64) ([]ModelVersion, uint64, error) {
	var total uint64
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM model_versions`); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	query := `SELECT version_number, avg_accuracy, avg_loss, description, file_path, created_at
		FROM model_versions ORDER BY version_number LIMIT ? OFFSET ?`

	versions := []ModelVersion{}
	if err := s.db.SelectContext(ctx, &versions, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return versions, total, nil
}

func (s *store) Close() error {
	return s.db.Close()
}
