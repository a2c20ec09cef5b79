// Package config loads agentic.yaml, the configuration of the serve and run
// commands.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hexastack/agentic/cli/internal/security"
	"github.com/hexastack/agentic/runtime"
)

const FileName = "agentic.yaml"

type Config struct {
	Server    ServerConfig              `yaml:"server" json:"server"`
	Log       LogConfig                 `yaml:"log" json:"log"`
	Workflows WorkflowsConfig           `yaml:"workflows" json:"workflows"`
	Channels  ChannelsConfig            `yaml:"channels" json:"channels"`
	Actions   map[string]map[string]any `yaml:"actions" json:"actions"`
	Telemetry TelemetryConfig           `yaml:"telemetry" json:"telemetry"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr" default:"0.0.0.0:8080" validate:"hostname_port"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" default:"text" validate:"oneof=text json"`
}

type WorkflowsConfig struct {
	// Dir is resolved against the project directory and must stay inside it.
	Dir string `yaml:"dir" json:"dir" default:"workflows"`
	// OnMessage names the workflow run for each inbound channel message.
	OnMessage string `yaml:"on_message" json:"on_message"`
}

type ChannelsConfig struct {
	// Default receives runs that do not name a channel.
	Default  string         `yaml:"default" json:"default" default:"web" validate:"snake_case"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Webhook  map[string]any `yaml:"webhook" json:"webhook"`
	Telegram TokenConfig    `yaml:"telegram" json:"telegram"`
	Discord  TokenConfig    `yaml:"discord" json:"discord"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" default:"true"`
}

// TokenConfig enables a bot channel when Token is set.
type TokenConfig struct {
	Token string `yaml:"token" json:"token"`
}

type TelemetryConfig struct {
	Metrics      bool   `yaml:"metrics" json:"metrics" default:"true"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure" json:"otlp_insecure"`
	ServiceName  string `yaml:"service_name" json:"service_name" default:"agentic"`
}

// Load reads agentic.yaml from projectDir. A .env file next to it is loaded
// into the environment first; variables already set win. A missing
// agentic.yaml yields the defaults.
func Load(projectDir string) (*Config, error) {
	return LoadFile(projectDir, filepath.Join(projectDir, FileName))
}

// LoadFile is like Load with an explicit config path, which must be inside
// projectDir.
func LoadFile(projectDir, configPath string) (*Config, error) {
	if err := security.ValidatePathWithinBoundary(projectDir, configPath); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	envPath := filepath.Join(projectDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	raw := map[string]any{}
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
		}
	}

	expanded, err := ExpandEnv(raw)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := runtime.InitializeConfig(&cfg, expanded.(map[string]any)); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(configPath), err)
	}

	cfg.Workflows.Dir = resolve(projectDir, cfg.Workflows.Dir)
	if err := security.ValidatePathsWithinBoundary(projectDir, cfg.Workflows.Dir); err != nil {
		return nil, fmt.Errorf("invalid workflows.dir: %w", err)
	}
	return &cfg, nil
}

// ActionSettings returns the settings configured for an action, if any.
func (c *Config) ActionSettings(name string) map[string]any {
	return c.Actions[name]
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}
