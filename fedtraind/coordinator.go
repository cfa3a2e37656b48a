// Package fedtraind starts and supervises the fedtrain services.
package fedtraind

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	fedtrain "github.com/hospinet/fedtrain"
	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/coordinator/api"
	"github.com/hospinet/fedtrain/coordinator/middleware"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/pkg/mqtt"
	"github.com/hospinet/fedtrain/pkg/prometheus"
	"github.com/hospinet/fedtrain/pkg/sampler"
	"github.com/hospinet/fedtrain/pkg/server"
	httpserver "github.com/hospinet/fedtrain/pkg/server/http"
	"github.com/hospinet/fedtrain/round"
	"github.com/hospinet/fedtrain/trainer"
)

const coordinatorSvcName = "coordinator"

// CoordinatorConfig collects everything the coordinator daemon needs.
type CoordinatorConfig struct {
	LogLevel    string
	InstanceID  string
	ConfigPath  string
	DBPath      string
	MQTTAddress string
	MQTTQoS     uint8
	MQTTTimeout time.Duration
	Username    string
	Password    string
	Server      server.Config
}

// StartCoordinator wires the coordinator service and blocks until the
// context ends or a component fails.
func StartCoordinator(ctx context.Context, cancel context.CancelFunc, cfg CoordinatorConfig) error {
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

	crypto, err := hecrypt.NewContext(session.Crypto)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption context: %s", err.Error())
	}

	db, err := ledger.NewDatabase(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open ledger database: %s", err.Error())
	}
	store := ledger.NewStore(db)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing ledger", slog.Any("error", err))
		}
	}()

	smp, err := sampler.NewFraction(session.Session.Fraction, session.Session.MinClients, session.Session.SamplerSeed)
	if err != nil {
		return fmt.Errorf("failed to build sampler: %s", err.Error())
	}

	mqttPubSub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, coordinatorSvcName, cfg.Username, cfg.Password, session.FederationID, cfg.MQTTTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize mqtt pubsub: %s", err.Error())
	}

	seedModel := trainer.NewLinearClassifier(session.Model.Features, session.Model.Classes, nil, nil)
	initial := round.PlaintextVector(seedModel.Parameters(), seedModel.Manifest())

	svc, err := coordinator.NewService(session.Session, crypto, store, smp, mqttPubSub, session.FederationID, initial, logger)
	if err != nil {
		return fmt.Errorf("failed to build coordinator service: %s", err.Error())
	}
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(noop.NewTracerProvider().Tracer(coordinatorSvcName), svc)
	counter, latency := prometheus.MakeMetrics(coordinatorSvcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if err := svc.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to federation channel: %s", err.Error())
	}

	hs := httpserver.NewServer(ctx, cancel, coordinatorSvcName, cfg.Server, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return svc.RunSession(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, coordinatorSvcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", coordinatorSvcName, err))
	}

	return nil
}

var coordinatorCmd = []cobra.Command{
	{
		Use:   "start",
		Short: "Start coordinator",
		Long:  `Start coordinator.`,
		Run: func(cmd *cobra.Command, _ []string) {
			cfg := CoordinatorConfig{
				LogLevel:    "info",
				ConfigPath:  "config.toml",
				DBPath:      "fedtrain.db",
				MQTTAddress: "tcp://localhost:1883",
				MQTTQoS:     2,
				MQTTTimeout: 30 * time.Second,
				Server: server.Config{
					Port: "9090",
				},
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			if err := StartCoordinator(ctx, cancel, cfg); err != nil {
				cmd.PrintErrf("failed to start coordinator: %s", err.Error())
			}
			cancel()
		},
	},
}

func NewCoordinatorCmd() *cobra.Command {
	cmd := cobra.Command{
		Use:   "coordinator [start]",
		Short: "Coordinator management",
		Long:  `Run the federation coordinator.`,
	}

	for i := range coordinatorCmd {
		cmd.AddCommand(&coordinatorCmd[i])
	}

	return &cmd
}
