// Package server provides the HTTP server lifecycle shared by the
// coordinator and node daemons.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Server is a long-running listener with a graceful stop.
type Server interface {
	Start() error
	Stop() error
}

// Config holds the listener configuration, parsed from the
// environment with a per-service prefix.
type Config struct {
	Host     string `env:"HOST"      envDefault:"localhost"`
	Port     string `env:"PORT"      envDefault:""`
	CertFile string `env:"CERT_FILE" envDefault:""`
	KeyFile  string `env:"KEY_FILE"  envDefault:""`
}

// BaseServer carries the state every concrete server needs.
type BaseServer struct {
	Ctx      context.Context
	Cancel   context.CancelFunc
	Name     string
	Address  string
	Config   Config
	Logger   *slog.Logger
	Protocol string
}

// StopSignalHandler blocks until SIGINT/SIGABRT or context
// cancellation, then stops all given servers.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGABRT)
	select {
	case sig := <-c:
		defer cancel()
		if err := stopAll(servers...); err != nil {
			return err
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))

		return nil
	case <-ctx.Done():
		return stopAll(servers...)
	}
}

func stopAll(servers ...Server) error {
	var err error
	for _, s := range servers {
		if s == nil {
			continue
		}
		if serr := s.Stop(); serr != nil {
			err = serr
		}
	}

	return err
}
