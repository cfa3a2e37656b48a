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
)

const pathEnv = ".env"

type envConfig struct {
	LogLevel         string        `env:"NODE_LOG_LEVEL"         envDefault:"info"`
	NodeID           string        `env:"NODE_ID"`
	NodeName         string        `env:"NODE_NAME"`
	ConfigPath       string        `env:"NODE_CONFIG_PATH"       envDefault:"config.toml"`
	CoordinatorURL   string        `env:"NODE_COORDINATOR_URL"   envDefault:"http://localhost:9090"`
	MQTTAddress      string        `env:"NODE_MQTT_ADDRESS"      envDefault:"tcp://localhost:1883"`
	MQTTQoS          uint8         `env:"NODE_MQTT_QOS"          envDefault:"2"`
	MQTTTimeout      time.Duration `env:"NODE_MQTT_TIMEOUT"      envDefault:"30s"`
	Username         string        `env:"NODE_MQTT_USERNAME"`
	Password         string        `env:"NODE_MQTT_PASSWORD"`
	LivenessInterval time.Duration `env:"NODE_LIVENESS_INTERVAL" envDefault:"10s"`
	DatasetSize      int           `env:"NODE_DATASET_SIZE"      envDefault:"256"`
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

	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.NodeName == "" {
		cfg.NodeName = cfg.NodeID
	}

	if err := fedtraind.StartNode(ctx, cancel, fedtraind.NodeConfig{
		LogLevel:         cfg.LogLevel,
		NodeID:           cfg.NodeID,
		NodeName:         cfg.NodeName,
		ConfigPath:       cfg.ConfigPath,
		CoordinatorURL:   cfg.CoordinatorURL,
		MQTTAddress:      cfg.MQTTAddress,
		MQTTQoS:          cfg.MQTTQoS,
		MQTTTimeout:      cfg.MQTTTimeout,
		Username:         cfg.Username,
		Password:         cfg.Password,
		LivenessInterval: cfg.LivenessInterval,
		DatasetSize:      cfg.DatasetSize,
	}); err != nil {
		log.Fatalf("node exited with error: %s", err.Error())
	}
}
