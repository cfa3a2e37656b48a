package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

var _ coordinator.Service = (*Service)(nil)

type Service struct {
	mock.Mock
}

func (m *Service) ConfigureFit(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error) {
	args := m.Called(ctx, roundNum)

	return args.Get(0).(round.FitConfig), args.Get(1).([]node.Node), args.Error(2)
}

func (m *Service) AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (*round.ParameterVector, error) {
	args := m.Called(ctx, roundNum, results)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*round.ParameterVector), args.Error(1)
}

func (m *Service) ConfigureEvaluate(ctx context.Context, roundNum int) ([]node.Node, error) {
	args := m.Called(ctx, roundNum)

	return args.Get(0).([]node.Node), args.Error(1)
}

func (m *Service) AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (map[string]float64, error) {
	args := m.Called(ctx, roundNum, results)

	return args.Get(0).(map[string]float64), args.Error(1)
}

func (m *Service) RunSession(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *Service) Status(ctx context.Context) (round.Status, error) {
	args := m.Called(ctx)

	return args.Get(0).(round.Status), args.Error(1)
}

func (m *Service) PublicContext(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)

	return args.Get(0).([]byte), args.Error(1)
}

func (m *Service) ListNodes(ctx context.Context, offset, limit uint64) (node.Page, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(node.Page), args.Error(1)
}

func (m *Service) ListRoundMetrics(ctx context.Context, offset, limit uint64) (coordinator.RoundMetricPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.RoundMetricPage), args.Error(1)
}

func (m *Service) ListModelVersions(ctx context.Context, offset, limit uint64) (coordinator.ModelVersionPage, error) {
	args := m.Called(ctx, offset, limit)

	return args.Get(0).(coordinator.ModelVersionPage), args.Error(1)
}

func (m *Service) GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error) {
	args := m.Called(ctx, version)

	return args.Get(0).(ledger.ModelVersion), args.Error(1)
}

func (m *Service) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *Service) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
