package tellerd

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config controls tellerd server runtime behavior.
type Config struct {
	// Listen is the public HTTP listen address.
	Listen string `validate:"required,hostname_port"`
	// MCPPath is the HTTP path of the streamable MCP endpoint.
	MCPPath string `validate:"required,startswith=/"`
	// MetricsListen enables a dedicated Prometheus listener when set.
	MetricsListen string `validate:"omitempty,hostname_port"`
	// PprofListen enables a dedicated pprof listener when set.
	PprofListen string `validate:"omitempty,hostname_port"`
	// EnableRuntimeMetrics adds Go runtime instrumentation to the metrics
	// endpoint. Requires MetricsListen.
	EnableRuntimeMetrics bool
	// FixturesPath loads bankmock fixtures from a YAML file instead of the
	// embedded defaults. Only honored when tellerd runs with the mock backend.
	FixturesPath string
	// WatchFixtures hot-reloads FixturesPath on change.
	WatchFixtures bool
	// CardClaimsSecret verifies the HS256 bearer tokens that carry the
	// cardholder identity for the credit-card tools.
	CardClaimsSecret string
	// TransactionTTL bounds how long a staged transaction stays resolvable.
	TransactionTTL time.Duration `validate:"min=0"`
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:8471"
	}
	if strings.TrimSpace(cfg.MCPPath) == "" {
		cfg.MCPPath = "/mcp"
	}
	if cfg.TransactionTTL <= 0 {
		cfg.TransactionTTL = 5 * time.Minute
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func validateConfig(cfg Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid tellerd config: %w", err)
	}
	if cfg.EnableRuntimeMetrics && strings.TrimSpace(cfg.MetricsListen) == "" {
		return fmt.Errorf("invalid tellerd config: runtime metrics require a metrics listen address")
	}
	if cfg.WatchFixtures && strings.TrimSpace(cfg.FixturesPath) == "" {
		return fmt.Errorf("invalid tellerd config: fixture watching requires a fixtures path")
	}
	return nil
}
