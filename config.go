package fedtrain

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/pkg/dp"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
)

// Config is the session configuration file shared by the coordinator
// and the provisioning CLI.
type Config struct {
	FederationID string                    `toml:"federation_id"`
	Session      coordinator.SessionConfig `toml:"session"`
	Crypto       hecrypt.Config            `toml:"crypto"`
	Privacy      dp.Params                 `toml:"privacy"`
	Model        ModelConfig               `toml:"model"`
}

// ModelConfig fixes the shared model architecture every participant
// must agree on before a session starts.
type ModelConfig struct {
	Features int `toml:"features"`
	Classes  int `toml:"classes"`
}

// DefaultConfig returns the configuration the provisioning CLI writes.
func DefaultConfig() Config {
	return Config{
		FederationID: "hospital-demo",
		Session:      coordinator.DefaultSessionConfig(),
		Crypto:       hecrypt.DefaultConfig(),
		Privacy:      dp.DefaultParams(),
		Model:        ModelConfig{Features: 8, Classes: 2},
	}
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	tree, err := toml.Load(string(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	var cfg Config
	if err := tree.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes the configuration as TOML.
func SaveConfig(path string, cfg Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
