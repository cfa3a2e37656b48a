package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/round"
)

type registration struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
}

func (svc *service) topic(suffix string) string {
	return fmt.Sprintf("federation/%s/%s", svc.federationID, suffix)
}

// Subscribe wires the coordinator into the federation channel: node
// registration and liveness, plus the fit and evaluate result streams.
func (svc *service) Subscribe(ctx context.Context) error {
	if err := svc.pubsub.Subscribe(ctx, svc.topic("nodes/join"), svc.handleJoin(ctx)); err != nil {
		return err
	}
	if err := svc.pubsub.Subscribe(ctx, svc.topic("nodes/alive"), svc.handleAlive(ctx)); err != nil {
		return err
	}
	if err := svc.pubsub.Subscribe(ctx, svc.topic("nodes/offline"), svc.handleOffline(ctx)); err != nil {
		return err
	}
	if err := svc.pubsub.Subscribe(ctx, svc.topic("rounds/fit/results"), svc.handleFitResult(ctx)); err != nil {
		return err
	}

	return svc.pubsub.Subscribe(ctx, svc.topic("rounds/evaluate/results"), svc.handleEvaluateResult(ctx))
}

func (svc *service) handleJoin(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var reg registration
		if err := json.Unmarshal(payload, &reg); err != nil {
			return err
		}
		if reg.NodeID == "" {
			return errors.New("node id is empty")
		}

		svc.mu.Lock()
		n, ok := svc.nodes[reg.NodeID]
		if !ok {
			n = node.Node{ID: reg.NodeID, Name: reg.Name}
		}
		n.Alive = true
		n.LastSeen = time.Now()
		svc.nodes[reg.NodeID] = n
		svc.mu.Unlock()

		svc.logger.InfoContext(ctx, "node joined federation",
			slog.Group("node", slog.String("id", reg.NodeID), slog.String("name", reg.Name)))

		return nil
	}
}

func (svc *service) handleAlive(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var reg registration
		if err := json.Unmarshal(payload, &reg); err != nil {
			return err
		}
		if reg.NodeID == "" {
			return errors.New("node id is empty")
		}

		svc.mu.Lock()
		n, ok := svc.nodes[reg.NodeID]
		if !ok {
			n = node.Node{ID: reg.NodeID, Name: reg.Name}
		}
		n.Alive = true
		n.LastSeen = time.Now()
		svc.nodes[reg.NodeID] = n
		svc.mu.Unlock()

		return nil
	}
}

func (svc *service) handleOffline(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var reg registration
		if err := json.Unmarshal(payload, &reg); err != nil {
			return err
		}

		svc.mu.Lock()
		if n, ok := svc.nodes[reg.NodeID]; ok {
			n.Alive = false
			svc.nodes[reg.NodeID] = n
		}
		svc.mu.Unlock()

		svc.logger.WarnContext(ctx, "node went offline", slog.String("node_id", reg.NodeID))

		return nil
	}
}

func (svc *service) handleFitResult(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var res round.FitResult
		if err := cbor.Unmarshal(payload, &res); err != nil {
			return err
		}
		res.ReceivedAt = time.Now()

		select {
		case svc.fitCh <- res:
		default:
			svc.logger.WarnContext(ctx, "fit result dropped, collector not draining",
				slog.String("node_id", res.NodeID), slog.Int("round", res.Round))
		}

		return nil
	}
}

func (svc *service) handleEvaluateResult(ctx context.Context) func(topic string, payload []byte) error {
	return func(_ string, payload []byte) error {
		var res round.EvaluateResult
		if err := cbor.Unmarshal(payload, &res); err != nil {
			return err
		}
		res.ReceivedAt = time.Now()

		select {
		case svc.evalCh <- res:
		default:
			svc.logger.WarnContext(ctx, "evaluate result dropped, collector not draining",
				slog.String("node_id", res.NodeID), slog.Int("round", res.Round))
		}

		return nil
	}
}
