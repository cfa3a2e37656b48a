package trainer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/pkg/dp"
	"github.com/hospinet/fedtrain/pkg/mqtt"
	"github.com/hospinet/fedtrain/pkg/mqtt/mocks"
	"github.com/hospinet/fedtrain/round"
	"github.com/hospinet/fedtrain/trainer"
)

func TestNodeServiceAnnouncesJoin(t *testing.T) {
	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", mock.Anything, "federation/fed-test/nodes/join", mock.Anything).Return(nil).Once()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr, err := trainer.NewLocalTrainer("node-1", testModel(t, 8), testCrypto(t).Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err = trainer.NewService(ctx, "fed-test", "node-1", "hospital-a", time.Minute, pubsub, tr, logger)
	require.NoError(t, err)
	pubsub.AssertExpectations(t)
}

func TestNodeServiceFitAndEvaluate(t *testing.T) {
	pubsub := new(mocks.PubSub)
	pubsub.On("Publish", mock.Anything, "federation/fed-test/nodes/join", mock.Anything).Return(nil)

	// Subscribe calls happen in Run in a fixed order: fit, then evaluate.
	handlers := make(chan mqtt.Handler, 2)
	capture := func(args mock.Arguments) { handlers <- args.Get(2).(mqtt.Handler) }
	pubsub.On("Subscribe", mock.Anything, "federation/fed-test/rounds/fit/start", mock.Anything).Return(nil).Run(capture)
	pubsub.On("Subscribe", mock.Anything, "federation/fed-test/rounds/evaluate/start", mock.Anything).Return(nil).Run(capture)

	fitResults := make(chan []byte, 1)
	pubsub.On("Publish", mock.Anything, "federation/fed-test/rounds/fit/results", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		fitResults <- args.Get(2).([]byte)
	})
	evalResults := make(chan []byte, 1)
	pubsub.On("Publish", mock.Anything, "federation/fed-test/rounds/evaluate/results", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		evalResults <- args.Get(2).([]byte)
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := testModel(t, 16)
	tr, err := trainer.NewLocalTrainer("node-1", model, testCrypto(t).Public(), dp.DefaultParams(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := trainer.NewService(ctx, "fed-test", "node-1", "hospital-a", time.Minute, pubsub, tr, logger)
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- svc.Run(ctx) }()

	fitHandler := <-handlers
	evalHandler := <-handlers

	global := round.PlaintextVector(model.Parameters(), model.Manifest())

	// A task for another node is ignored silently.
	skip, err := cbor.Marshal(round.FitTask{Round: 1, Config: round.FitConfig{Epochs: 1}, Params: global, Clients: []string{"node-9"}})
	require.NoError(t, err)
	require.NoError(t, fitHandler("", skip))
	assert.Empty(t, fitResults)

	task, err := cbor.Marshal(round.FitTask{Round: 1, Config: round.FitConfig{Epochs: 1}, Params: global, Clients: []string{"node-1"}})
	require.NoError(t, err)
	require.NoError(t, fitHandler("", task))

	var fit round.FitResult
	require.NoError(t, cbor.Unmarshal(<-fitResults, &fit))
	assert.True(t, fit.OK(), "fit failed: %s", fit.FailReason)
	assert.Equal(t, "node-1", fit.NodeID)
	assert.Equal(t, round.TensorEncrypted, fit.Params.Type)
	assert.Equal(t, 16, fit.NumExamples)

	evalTask, err := cbor.Marshal(round.EvaluateTask{Round: 1, Params: global, Clients: []string{"node-1"}})
	require.NoError(t, err)
	require.NoError(t, evalHandler("", evalTask))

	var eval round.EvaluateResult
	require.NoError(t, cbor.Unmarshal(<-evalResults, &eval))
	assert.True(t, eval.OK(), "evaluate failed: %s", eval.FailReason)
	assert.Equal(t, 1, eval.Round)
	assert.Equal(t, 16, eval.NumExamples)

	cancel()
	assert.NoError(t, <-runDone)
}
