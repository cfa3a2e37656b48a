package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	pkgmqtt "github.com/hospinet/fedtrain/pkg/mqtt"
	"github.com/hospinet/fedtrain/round"
)

var (
	joinTopicTemplate        = "federation/%s/nodes/join"
	aliveTopicTemplate       = "federation/%s/nodes/alive"
	fitStartTopicTemplate    = "federation/%s/rounds/fit/start"
	fitResultsTopicTemplate  = "federation/%s/rounds/fit/results"
	evalStartTopicTemplate   = "federation/%s/rounds/evaluate/start"
	evalResultsTopicTemplate = "federation/%s/rounds/evaluate/results"
)

// NodeService keeps one hospital node attached to the federation: it
// announces itself, heartbeats, and answers fit and evaluate tasks.
type NodeService struct {
	federationID     string
	nodeID           string
	nodeName         string
	livenessInterval time.Duration
	pubsub           pkgmqtt.PubSub
	trainer          *LocalTrainer
	logger           *slog.Logger
}

func NewService(ctx context.Context, federationID, nodeID, nodeName string, livenessInterval time.Duration, pubsub pkgmqtt.PubSub, trainer *LocalTrainer, logger *slog.Logger) (*NodeService, error) {
	topic := fmt.Sprintf(joinTopicTemplate, federationID)
	payload := map[string]interface{}{
		"node_id": nodeID,
		"name":    nodeName,
	}
	if err := pubsub.Publish(ctx, topic, payload); err != nil {
		return nil, errors.Join(errors.New("failed to announce node"), err)
	}

	svc := &NodeService{
		federationID:     federationID,
		nodeID:           nodeID,
		nodeName:         nodeName,
		livenessInterval: livenessInterval,
		pubsub:           pubsub,
		trainer:          trainer,
		logger:           logger,
	}

	go svc.startLivenessUpdates(ctx)

	return svc, nil
}

func (svc *NodeService) startLivenessUpdates(ctx context.Context) {
	ticker := time.NewTicker(svc.livenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			svc.logger.Info("stopping liveness updates")

			return
		case <-ticker.C:
			topic := fmt.Sprintf(aliveTopicTemplate, svc.federationID)
			payload := map[string]interface{}{
				"status":  "alive",
				"node_id": svc.nodeID,
				"name":    svc.nodeName,
			}
			if err := svc.pubsub.Publish(ctx, topic, payload); err != nil {
				svc.logger.Error("failed to publish liveness message", slog.Any("error", err))
			}
		}
	}
}

// Run subscribes to the round topics and blocks until the context ends.
func (svc *NodeService) Run(ctx context.Context) error {
	topic := fmt.Sprintf(fitStartTopicTemplate, svc.federationID)
	if err := svc.pubsub.Subscribe(ctx, topic, svc.handleFitTask(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to fit topic: %w", err)
	}

	topic = fmt.Sprintf(evalStartTopicTemplate, svc.federationID)
	if err := svc.pubsub.Subscribe(ctx, topic, svc.handleEvaluateTask(ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to evaluate topic: %w", err)
	}

	svc.logger.Info("node service is running", slog.String("node_id", svc.nodeID))
	<-ctx.Done()

	return nil
}

func (svc *NodeService) sampled(clients []string) bool {
	for _, id := range clients {
		if id == svc.nodeID {
			return true
		}
	}

	return false
}

func (svc *NodeService) handleFitTask(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var task round.FitTask
		if err := cbor.Unmarshal(payload, &task); err != nil {
			return err
		}
		if !svc.sampled(task.Clients) {
			return nil
		}

		svc.logger.InfoContext(ctx, "starting local training",
			slog.Int("round", task.Round), slog.Int("epochs", task.Config.Epochs))

		result := svc.trainer.Fit(task)
		if result.FailReason != "" {
			svc.logger.WarnContext(ctx, "local training failed, reporting failure",
				slog.Int("round", task.Round), slog.String("reason", result.FailReason))
		}

		blob, err := cbor.Marshal(result)
		if err != nil {
			return err
		}

		return svc.pubsub.Publish(ctx, fmt.Sprintf(fitResultsTopicTemplate, svc.federationID), blob)
	}
}

func (svc *NodeService) handleEvaluateTask(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var task round.EvaluateTask
		if err := cbor.Unmarshal(payload, &task); err != nil {
			return err
		}
		if !svc.sampled(task.Clients) {
			return nil
		}

		result := svc.trainer.Evaluate(task)
		if result.FailReason != "" {
			svc.logger.WarnContext(ctx, "evaluation failed, reporting failure",
				slog.Int("round", task.Round), slog.String("reason", result.FailReason))
		}

		blob, err := cbor.Marshal(result)
		if err != nil {
			return err
		}

		return svc.pubsub.Publish(ctx, fmt.Sprintf(evalResultsTopicTemplate, svc.federationID), blob)
	}
}
