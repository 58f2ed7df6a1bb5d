// Package config provides configuration management for the Gridiron Edge engine.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "config/config.yaml"
	envPrefix         = "GRIDIRON_EDGE"
)

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	setDefaults(v)

	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration, falling back to defaults and environment
// variables when the file does not exist
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults registers values used when neither the file nor the environment sets them.
// Every key is registered so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gridiron-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.leagues", []string{"nfl", "ncaaf"})

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("rating.home_field_advantage", 2.0)

	v.SetDefault("edge.consensus_rule", "sharp")
	v.SetDefault("edge.sharp_books", []string{"pinnacle", "circa"})
	v.SetDefault("edge.units_per_point", 5.0)

	v.SetDefault("efactor.per_team_cap", 7.0)
	v.SetDefault("efactor.confidence_bound", 0.20)

	v.SetDefault("source_quality.alpha", 0.1)
	v.SetDefault("source_quality.latency_scale_seconds", 3600)
	v.SetDefault("source_quality.reference_score", 0.5)

	v.SetDefault("risk.min_bet_pct", 0.005)
	v.SetDefault("risk.max_bet_pct", 0.03)
	v.SetDefault("risk.kelly_fraction", 0.5)
	v.SetDefault("risk.min_edge_threshold", 1.5)
	v.SetDefault("risk.key_numbers", []float64{3, 7, 10, 14})
	v.SetDefault("risk.elevated_edge", 3.0)
	v.SetDefault("risk.high_edge", 5.0)
	v.SetDefault("risk.key_number_bonus", 0.01)

	v.SetDefault("bankroll.amount", 10000.0)
	v.SetDefault("bankroll.currency", "USD")

	v.SetDefault("calibration.rmse_ceiling", 13.5)
	v.SetDefault("calibration.ats_floor", 0.524)
	v.SetDefault("calibration.source_floor", 0.45)
	v.SetDefault("calibration.min_sample", 20)
	v.SetDefault("calibration.window_days", 90)
	v.SetDefault("calibration.auto_settle", true)

	v.SetDefault("acquisition.max_retries", 3)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("schedule.deferred_replay", "@every 5m")
	v.SetDefault("schedule.calibration_sweep", "0 6 * * *")
	v.SetDefault("schedule.source_snapshot", "@every 15m")
	v.SetDefault("schedule.completed_games", "@every 10m")

	v.SetDefault("health.port", "8080")

	v.SetDefault("backtest.league", "nfl")
	v.SetDefault("backtest.decision_lead_hours", 1)
	v.SetDefault("backtest.initial_bankroll", 10000.0)
	v.SetDefault("backtest.monte_carlo_iterations", 1000)
	v.SetDefault("backtest.window_days", 28)
	v.SetDefault("backtest.step_days", 7)
	v.SetDefault("backtest.min_bets_per_window", 5)
}
