// Package config provides configuration management for the Gridiron Edge engine.
package config

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/yourusername/gridiron-edge/internal/models"
)

const (
	validConfigPath              = "testdata/valid_config.yaml"
	expansionConfigPath          = "testdata/expansion_config.yaml"
	nonexistentConfigPath        = "testdata/nonexistent_config.yaml"
	expectedNoErrorLoadingConfig = "expected no error loading config, got %v"
	expectedNoErrorMsg           = "expected no error, got %v"
	gridironEdgeName             = "gridiron-edge"
	developmentEnv               = "development"
	testAppName                  = "test-app"
	testDBPassword               = "TEST_DB_PASSWORD"
	expandedSecretValue          = "expanded_secret_value"
)

func loadValid(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}
	return cfg
}

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg := loadValid(t)

	if cfg.App.Name != gridironEdgeName {
		t.Errorf("expected app name '%s', got '%s'", gridironEdgeName, cfg.App.Name)
	}
	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("expected database port 5432, got %d", cfg.Database.Port)
	}
	if cfg.Edge.ConsensusRule != "sharp" || len(cfg.Edge.SharpBooks) != 2 {
		t.Errorf("unexpected edge config: %+v", cfg.Edge)
	}
	if len(cfg.Risk.ProbabilityBuckets) != 4 {
		t.Errorf("expected 4 probability buckets, got %d", len(cfg.Risk.ProbabilityBuckets))
	}
	if len(cfg.EFactor.Decay) != 1 || cfg.EFactor.Decay[0].Type != "position_group_injury" {
		t.Errorf("unexpected decay overrides: %+v", cfg.EFactor.Decay)
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	if _, err := Load(nonexistentConfigPath); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadWithDefaultsMissingFile tests that defaults fill a missing file
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(nonexistentConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}
	if cfg.EFactor.PerTeamCap != 7.0 {
		t.Errorf("expected default per-team cap 7, got %v", cfg.EFactor.PerTeamCap)
	}
	if cfg.Risk.KellyFraction != 0.5 {
		t.Errorf("expected default kelly fraction 0.5, got %v", cfg.Risk.KellyFraction)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	t.Setenv("GRIDIRON_EDGE_APP_NAME", testAppName)
	t.Setenv("GRIDIRON_EDGE_RISK_MAX_BET_PCT", "0.02")

	cfg := loadValid(t)

	if cfg.App.Name != testAppName {
		t.Errorf("expected app name '%s' from environment, got '%s'", testAppName, cfg.App.Name)
	}
	if cfg.Risk.MaxBetPct != 0.02 {
		t.Errorf("expected max_bet_pct 0.02 from environment, got %v", cfg.Risk.MaxBetPct)
	}
}

// TestLoadConfigEnvironmentVariableExpansion tests ${VAR} expansion in the config file
func TestLoadConfigEnvironmentVariableExpansion(t *testing.T) {
	os.Setenv(testDBPassword, expandedSecretValue)
	defer os.Unsetenv(testDBPassword)

	cfg, err := Load(expansionConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config with expansion, got %v", err)
	}
	if cfg.Database.Password != expandedSecretValue {
		t.Errorf("expected password '%s' from environment expansion, got '%s'", expandedSecretValue, cfg.Database.Password)
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	if err := Validate(loadValid(t)); err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidEnvironment tests validation of invalid environment
func TestValidateInvalidEnvironment(t *testing.T) {
	cfg := loadValid(t)
	cfg.App.Environment = "invalid"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid environment")
	}
}

// TestValidateInvalidConsensusRule tests the consensus custom rule
func TestValidateInvalidConsensusRule(t *testing.T) {
	cfg := loadValid(t)
	cfg.Edge.ConsensusRule = "mean"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown consensus rule")
	}
	if !strings.Contains(err.Error(), "median, sharp") {
		t.Errorf("expected consensus message, got: %v", err)
	}
}

// TestValidateUnknownDecayEventType tests the event type custom rule
func TestValidateUnknownDecayEventType(t *testing.T) {
	cfg := loadValid(t)
	cfg.EFactor.Decay[0].Type = "horoscope"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown event type")
	}
}

// TestValidateMinBetAboveMax tests the stake bound cross-field check
func TestValidateMinBetAboveMax(t *testing.T) {
	cfg := loadValid(t)
	cfg.Risk.MinBetPct = 0.05
	cfg.Risk.MaxBetPct = 0.03

	err := Validate(cfg)
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Field != "risk.min_bet_pct" {
		t.Errorf("expected field risk.min_bet_pct, got %s", cfgErr.Field)
	}
	if !errors.Is(err, models.ErrConfiguration) {
		t.Error("expected error to wrap ErrConfiguration")
	}
}

// TestValidateTierOrdering tests tier breakpoint ordering
func TestValidateTierOrdering(t *testing.T) {
	cfg := loadValid(t)
	cfg.Risk.HighEdge = 2.0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when high_edge is below elevated_edge")
	}
}

// TestValidateProbabilityBucketsOrder tests bucket ordering
func TestValidateProbabilityBucketsOrder(t *testing.T) {
	cfg := loadValid(t)
	cfg.Risk.ProbabilityBuckets[1].MinEdge = 1.0
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for unordered probability buckets")
	}
}

// TestValidateSharpRuleRequiresBooks tests the sharp consensus cross-field check
func TestValidateSharpRuleRequiresBooks(t *testing.T) {
	cfg := loadValid(t)
	cfg.Edge.SharpBooks = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error when sharp rule has no sharp books")
	}
}

// TestValidateDuplicateSourceNames tests duplicate source detection
func TestValidateDuplicateSourceNames(t *testing.T) {
	cfg := loadValid(t)
	cfg.Acquisition.Sources[1].Name = cfg.Acquisition.Sources[0].Name
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for duplicate source names")
	}
}

// TestValidateProductionRequiresSSL tests production database requirements
func TestValidateProductionRequiresSSL(t *testing.T) {
	cfg := loadValid(t)
	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "disable"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for production without SSL")
	}
}

// TestValidateEnvironmentTestCredentials tests production credential checks
func TestValidateEnvironmentTestCredentials(t *testing.T) {
	cfg := loadValid(t)
	cfg.App.Environment = "production"
	cfg.Acquisition.Sources[0].APIKey = "YOUR_API_KEY"
	if err := ValidateEnvironment(cfg); err == nil {
		t.Fatal("expected error for placeholder credentials in production")
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	dsn := loadValid(t).GetDatabaseDSN()
	if !strings.HasPrefix(dsn, "postgres://") {
		t.Errorf("expected DSN to start with 'postgres://', got '%s'", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") {
		t.Errorf("expected sslmode in DSN, got '%s'", dsn)
	}
}

// TestSourcesOfType tests filtering and ordering of sources
func TestSourcesOfType(t *testing.T) {
	cfg := &Config{Acquisition: AcquisitionConfig{Sources: []SourceConfig{
		{Name: "b", Type: "odds", Enabled: true, Priority: 2},
		{Name: "a", Type: "odds", Enabled: true, Priority: 1},
		{Name: "off", Type: "odds", Enabled: false},
		{Name: "w", Type: "weather", Enabled: true},
	}}}

	got := cfg.SourcesOfType("odds")
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "b" {
		t.Errorf("unexpected sources: %+v", got)
	}
}

// TestEnvironmentChecks tests environment helper functions
func TestEnvironmentChecks(t *testing.T) {
	cases := map[string][3]bool{
		"development": {true, false, false},
		"staging":     {false, true, false},
		"production":  {false, false, true},
	}
	for env, want := range cases {
		cfg := &Config{App: AppConfig{Environment: env}}
		got := [3]bool{cfg.IsDevelopment(), cfg.IsStaging(), cfg.IsProduction()}
		if got != want {
			t.Errorf("%s: expected %v, got %v", env, want, got)
		}
	}
}

// TestOverlaySecretsOnConfig tests applying secrets to configuration
func TestOverlaySecretsOnConfig(t *testing.T) {
	cfg := loadValid(t)
	overlaySecretsOnConfig(cfg, &SecretsOverlay{
		DatabasePassword: "from-secrets",
		SourceAPIKeys:    map[string]string{"market-feed": "odds-key"},
	})

	if cfg.Database.Password != "from-secrets" {
		t.Errorf("expected overlaid password, got %s", cfg.Database.Password)
	}
	for _, src := range cfg.Acquisition.Sources {
		if src.Name == "market-feed" && src.APIKey != "odds-key" {
			t.Errorf("expected overlaid API key, got %s", src.APIKey)
		}
		if src.Name == "beat-wire" && src.APIKey != "" {
			t.Errorf("expected untouched API key, got %s", src.APIKey)
		}
	}
}
