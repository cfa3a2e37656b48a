package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hospinet/fedtrain/pkg/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store is a mock implementation of the ledger.Store interface.
type Store struct {
	mock.Mock
}

func (m *Store) RecordRoundMetric(ctx context.Context, metric ledger.RoundMetric) error {
	args := m.Called(ctx, metric)

	return args.Error(0)
}

func (m *Store) GetRoundMetric(ctx context.Context, round int) (ledger.RoundMetric, error) {
	args := m.Called(ctx, round)

	return args.Get(0).(ledger.RoundMetric), args.Error(1)
}

func (m *Store) ListRoundMetrics(ctx context.Context, offset, limit uint64) ([]ledger.RoundMetric, uint64, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).([]ledger.RoundMetric), args.Get(1).(uint64), args.Error(2)
}

func (m *Store) CreateModelVersion(ctx context.Context, version ledger.ModelVersion) error {
	args := m.Called(ctx, version)

	return args.Error(0)
}

func (m *Store) GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error) {
	args := m.Called(ctx, version)

	return args.Get(0).(ledger.ModelVersion), args.Error(1)
}

func (m *Store) ListModelVersions(ctx context.Context, offset, limit uint64) ([]ledger.ModelVersion, uint64, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).([]ledger.ModelVersion), args.Get(1).(uint64), args.Error(2)
}

func (m *Store) Close() error {
	args := m.Called()

	return args.Error(0)
}
