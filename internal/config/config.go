// Package config provides configuration management for the Gridiron Edge engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app" validate:"required"`
	Database      DatabaseConfig      `mapstructure:"database" validate:"required"`
	Rating        RatingConfig        `mapstructure:"rating" validate:"required"`
	Edge          EdgeConfig          `mapstructure:"edge" validate:"required"`
	EFactor       EFactorConfig       `mapstructure:"efactor" validate:"required"`
	SourceQuality SourceQualityConfig `mapstructure:"source_quality" validate:"required"`
	Risk          RiskConfig          `mapstructure:"risk" validate:"required"`
	Bankroll      BankrollConfig      `mapstructure:"bankroll" validate:"required"`
	Calibration   CalibrationConfig   `mapstructure:"calibration" validate:"required"`
	Acquisition   AcquisitionConfig   `mapstructure:"acquisition" validate:"required"`
	Metrics       MetricsConfig       `mapstructure:"metrics" validate:"required"`
	Schedule      ScheduleConfig      `mapstructure:"schedule" validate:"required"`
	Health        HealthConfig        `mapstructure:"health"`
	Backtest      BacktestConfig      `mapstructure:"backtest"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string   `mapstructure:"name" validate:"required"`
	Environment string   `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string   `mapstructure:"log_level" validate:"required,loglevel"`
	Leagues     []string `mapstructure:"leagues" validate:"required,min=1"`
}

// DatabaseConfig represents database connection configuration.
// When Enabled is false the engine runs on in-memory stores.
type DatabaseConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Host               string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_if=Enabled true"`
	User               string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// RatingConfig represents power rating configuration
type RatingConfig struct {
	HomeFieldAdvantage float64 `mapstructure:"home_field_advantage" validate:"gte=0,lte=10"`
}

// EdgeConfig represents market edge detection configuration
type EdgeConfig struct {
	ConsensusRule string   `mapstructure:"consensus_rule" validate:"required,consensus"`
	SharpBooks    []string `mapstructure:"sharp_books"`
	UnitsPerPoint float64  `mapstructure:"units_per_point" validate:"required,gt=0"`
}

// DecayOverride replaces the default decay parameters of one event type
type DecayOverride struct {
	Type          string  `mapstructure:"type" validate:"required,eventtype"`
	HalfLifeHours float64 `mapstructure:"half_life_hours" validate:"required,gt=0"`
	Floor         float64 `mapstructure:"floor" validate:"gte=0,lte=1"`
	MaxAgeHours   float64 `mapstructure:"max_age_hours" validate:"required,gt=0"`
}

// EFactorConfig represents E-Factor aggregation configuration
type EFactorConfig struct {
	PerTeamCap      float64         `mapstructure:"per_team_cap" validate:"required,gt=0"`
	ConfidenceBound float64         `mapstructure:"confidence_bound" validate:"required,gt=0,lte=1"`
	Decay           []DecayOverride `mapstructure:"decay" validate:"dive"`
}

// SourceQualityConfig represents source reliability tracking configuration
type SourceQualityConfig struct {
	Alpha               float64 `mapstructure:"alpha" validate:"required,gt=0,lte=1"`
	LatencyScaleSeconds int     `mapstructure:"latency_scale_seconds" validate:"required,gt=0"`
	ReferenceScore      float64 `mapstructure:"reference_score" validate:"required,gt=0,lte=1"`
}

// ProbabilityBucket maps a minimum absolute edge to a win probability
type ProbabilityBucket struct {
	MinEdge     float64 `mapstructure:"min_edge" validate:"gte=0"`
	Probability float64 `mapstructure:"probability" validate:"gt=0,lt=1"`
}

// RiskConfig represents stake sizing and recommendation thresholds
type RiskConfig struct {
	MinBetPct          float64             `mapstructure:"min_bet_pct" validate:"gte=0,lte=1"`
	MaxBetPct          float64             `mapstructure:"max_bet_pct" validate:"required,gt=0,lte=1"`
	KellyFraction      float64             `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	MinEdgeThreshold   float64             `mapstructure:"min_edge_threshold" validate:"required,gt=0"`
	KeyNumbers         []float64           `mapstructure:"key_numbers"`
	ElevatedEdge       float64             `mapstructure:"elevated_edge" validate:"required,gt=0"`
	HighEdge           float64             `mapstructure:"high_edge" validate:"required,gt=0"`
	KeyNumberBonus     float64             `mapstructure:"key_number_bonus" validate:"gte=0,lte=0.05"`
	ProbabilityBuckets []ProbabilityBucket `mapstructure:"probability_buckets" validate:"dive"`
}

// BankrollConfig represents the bankroll stakes are sized against
type BankrollConfig struct {
	Amount   float64 `mapstructure:"amount" validate:"required,gt=0"`
	Currency string  `mapstructure:"currency" validate:"required,len=3"`
}

// CalibrationConfig represents calibration advisory thresholds
type CalibrationConfig struct {
	RMSECeiling float64 `mapstructure:"rmse_ceiling" validate:"required,gt=0"`
	ATSFloor    float64 `mapstructure:"ats_floor" validate:"required,gt=0,lt=1"`
	SourceFloor float64 `mapstructure:"source_floor" validate:"required,gt=0,lt=1"`
	MinSample   int     `mapstructure:"min_sample" validate:"required,gt=0"`
	WindowDays  int     `mapstructure:"window_days" validate:"required,gt=0"`
	// AutoSettle grades active predictions when their game completes
	AutoSettle bool `mapstructure:"auto_settle"`
}

// AcquisitionConfig represents collaborator feed configuration
type AcquisitionConfig struct {
	Sources    []SourceConfig `mapstructure:"sources" validate:"dive"`
	StreamURL  string         `mapstructure:"stream_url"`
	MaxRetries int            `mapstructure:"max_retries" validate:"gte=0"`
}

// SourceConfig represents a single collaborator feed
type SourceConfig struct {
	Name           string  `mapstructure:"name" validate:"required"`
	Type           string  `mapstructure:"type" validate:"required,oneof=games odds events weather"`
	URL            string  `mapstructure:"url" validate:"required,url"`
	APIKey         string  `mapstructure:"api_key"`
	Enabled        bool    `mapstructure:"enabled"`
	Priority       int     `mapstructure:"priority" validate:"gte=0"`
	TTLSeconds     int     `mapstructure:"ttl_seconds" validate:"required,gt=0"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
	RateLimit      float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// ScheduleConfig represents background job schedules (cron expressions)
type ScheduleConfig struct {
	DeferredReplay   string `mapstructure:"deferred_replay" validate:"required"`
	CalibrationSweep string `mapstructure:"calibration_sweep" validate:"required"`
	SourceSnapshot   string `mapstructure:"source_snapshot" validate:"required"`
	// CompletedGames polls the game feed for finals; empty disables it
	CompletedGames string `mapstructure:"completed_games"`
}

// HealthConfig represents the health server
type HealthConfig struct {
	Port string `mapstructure:"port"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SourcesOfType returns the enabled sources of a feed type ordered by priority
func (c *Config) SourcesOfType(sourceType string) []SourceConfig {
	var out []SourceConfig
	for _, src := range c.Acquisition.Sources {
		if src.Enabled && src.Type == sourceType {
			out = append(out, src)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// TTL returns the cache time-to-live of a source
func (s SourceConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// Timeout returns the per-fetch timeout of a source
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// BacktestConfig represents historical replay settings
type BacktestConfig struct {
	StartDate            string  `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate              string  `mapstructure:"end_date" validate:"omitempty,datetime=2006-01-02"`
	League               string  `mapstructure:"league"`
	DecisionLeadHours    int     `mapstructure:"decision_lead_hours" validate:"gte=0"`
	InitialBankroll      float64 `mapstructure:"initial_bankroll" validate:"gte=0"`
	MonteCarloIterations int     `mapstructure:"monte_carlo_iterations" validate:"gte=0"`
	WindowDays           int     `mapstructure:"window_days" validate:"gte=0"`
	StepDays             int     `mapstructure:"step_days" validate:"gte=0"`
	MinBetsPerWindow     int     `mapstructure:"min_bets_per_window" validate:"gte=0"`
	RiskFreeRate         float64 `mapstructure:"risk_free_rate" validate:"gte=0"`
}
