package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hospinet/fedtrain/fedtraind"
	"github.com/hospinet/fedtrain/pkg/server"
)

const (
	defHTTPPort   = "9090"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"COORDINATOR_LOG_LEVEL"    envDefault:"info"`
	InstanceID  string        `env:"COORDINATOR_INSTANCE_ID"`
	ConfigPath  string        `env:"COORDINATOR_CONFIG_PATH"  envDefault:"config.toml"`
	DBPath      string        `env:"COORDINATOR_DB_PATH"      envDefault:"fedtrain.db"`
	MQTTAddress string        `env:"COORDINATOR_MQTT_ADDRESS" envDefault:"tcp://localhost:1883"`
	MQTTQoS     uint8         `env:"COORDINATOR_MQTT_QOS"     envDefault:"2"`
	MQTTTimeout time.Duration `env:"COORDINATOR_MQTT_TIMEOUT" envDefault:"30s"`
	Username    string        `env:"COORDINATOR_MQTT_USERNAME"`
	Password    string        `env:"COORDINATOR_MQTT_PASSWORD"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		log.Fatalf("failed to load HTTP server configuration : %s", err.Error())
	}

	if err := fedtraind.StartCoordinator(ctx, cancel, fedtraind.CoordinatorConfig{
		LogLevel:    cfg.LogLevel,
		InstanceID:  cfg.InstanceID,
		ConfigPath:  cfg.ConfigPath,
		DBPath:      cfg.DBPath,
		MQTTAddress: cfg.MQTTAddress,
		MQTTQoS:     cfg.MQTTQoS,
		MQTTTimeout: cfg.MQTTTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Server:      httpServerConfig,
	}); err != nil {
		log.Fatalf("coordinator exited with error: %s", err.Error())
	}
}
