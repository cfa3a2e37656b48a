package fedtraind

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	fedtrain "github.com/hospinet/fedtrain"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
	"github.com/hospinet/fedtrain/pkg/mqtt"
	"github.com/hospinet/fedtrain/pkg/sdk"
	"github.com/hospinet/fedtrain/pkg/server"
	"github.com/hospinet/fedtrain/trainer"
)

const (
	nodeSvcName       = "node"
	contextRetryDelay = 5 * time.Second
	contextRetries    = 24
)

// NodeConfig collects everything a hospital node daemon needs.
type NodeConfig struct {
	LogLevel         string
	NodeID           string
	NodeName         string
	ConfigPath       string
	CoordinatorURL   string
	MQTTAddress      string
	MQTTQoS          uint8
	MQTTTimeout      time.Duration
	Username         string
	Password         string
	LivenessInterval time.Duration
	DatasetSize      int
}

// StartNode fetches the public encryption context, builds the local
// trainer and keeps the node attached to the federation.
func StartNode(ctx context.Context, cancel context.CancelFunc, cfg NodeConfig) error {
	g, ctx := errgroup.WithContext(ctx)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	session := fedtrain.DefaultConfig()
	if _, err := os.Stat(cfg.ConfigPath); err == nil {
		loaded, err := fedtrain.LoadConfig(cfg.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load session config: %s", err.Error())
		}
		session = *loaded
	}

	fsdk := sdk.NewSDK(sdk.Config{CoordinatorURL: cfg.CoordinatorURL})
	pub, err := fetchPublicContext(ctx, fsdk, logger)
	if err != nil {
		return err
	}

	seed := nodeSeed(cfg.NodeID)
	data, labels := trainer.SyntheticDataset(seed, cfg.DatasetSize, session.Model.Features, session.Model.Classes)
	model := trainer.NewLinearClassifier(session.Model.Features, session.Model.Classes, data, labels)

	local, err := trainer.NewLocalTrainer(cfg.NodeID, model, pub, session.Privacy, seed)
	if err != nil {
		return fmt.Errorf("failed to build local trainer: %s", err.Error())
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, cfg.NodeID, cfg.Username, cfg.Password, session.FederationID, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
	}

	svc, err := trainer.NewService(ctx, session.FederationID, cfg.NodeID, cfg.NodeName, cfg.LivenessInterval, mqttPubSub, local, logger)
	if err != nil {
		return fmt.Errorf("failed to start node service: %s", err.Error())
	}

	g.Go(func() error {
		return svc.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, nodeSvcName)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", nodeSvcName, err))
	}

	return nil
}

// fetchPublicContext polls the coordinator until the public context is
// available; nodes routinely start before the coordinator does.
func fetchPublicContext(ctx context.Context, fsdk sdk.SDK, logger *slog.Logger) (*hecrypt.PublicContext, error) {
	for attempt := 0; attempt < contextRetries; attempt++ {
		blob, err := fsdk.PublicContext()
		if err == nil {
			return hecrypt.LoadPublicContext(blob)
		}
		logger.Info("waiting for coordinator public context", slog.Any("cause", err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(contextRetryDelay):
		}
	}

	return nil, fmt.Errorf("coordinator public context unavailable after %d attempts", contextRetries)
}

func nodeSeed(nodeID string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(nodeID))

	return h.Sum64()
}

var nodeCmd = []cobra.Command{
	{
		Use:   "start <node-id>",
		Short: "Start node",
		Long:  `Start a hospital node.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				cmd.PrintErrln("usage: node start <node-id>")

				return
			}
			cfg := NodeConfig{
				LogLevel:         "info",
				NodeID:           args[0],
				NodeName:         args[0],
				ConfigPath:       "config.toml",
				CoordinatorURL:   "http://localhost:9090",
				MQTTAddress:      "tcp://localhost:1883",
				MQTTQoS:          2,
				MQTTTimeout:      30 * time.Second,
				LivenessInterval: 10 * time.Second,
				DatasetSize:      256,
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			if err := StartNode(ctx, cancel, cfg); err != nil {
				cmd.PrintErrf("failed to start node: %s", err.Error())
			}
			cancel()
		},
	},
}

func NewNodeCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "node [start]",
		Short: "Node management",
		Long:  `Run a hospital node.`,
	}

	for i := range nodeCmd {
		cmd.AddCommand(&nodeCmd[i])
	}

	return &cmd
}
