// Package config provides configuration management for the Gridiron Edge engine.
package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/yourusername/gridiron-edge/internal/models"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Registration only fails for an empty tag or nil func
	_ = v.RegisterValidation("environment", validateEnvironment)
	_ = v.RegisterValidation("loglevel", validateLogLevel)
	_ = v.RegisterValidation("consensus", validateConsensus)
	_ = v.RegisterValidation("eventtype", validateEventType)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func validateConsensus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "median", "sharp":
		return true
	default:
		return false
	}
}

func validateEventType(fl validator.FieldLevel) bool {
	return models.EventType(fl.Field().String()).IsValid()
}

// validateCrossField performs cross-field validations. Failures are
// reported as *models.ConfigurationError so callers can match on the field.
func validateCrossField(cfg *Config) error {
	if cfg.Risk.MinBetPct > cfg.Risk.MaxBetPct {
		return &models.ConfigurationError{Field: "risk.min_bet_pct", Reason: "cannot exceed max_bet_pct"}
	}

	if cfg.Risk.ElevatedEdge < cfg.Risk.MinEdgeThreshold {
		return &models.ConfigurationError{Field: "risk.elevated_edge", Reason: "must be at least min_edge_threshold"}
	}

	if cfg.Risk.HighEdge < cfg.Risk.ElevatedEdge {
		return &models.ConfigurationError{Field: "risk.high_edge", Reason: "must be at least elevated_edge"}
	}

	for i := 1; i < len(cfg.Risk.ProbabilityBuckets); i++ {
		prev, cur := cfg.Risk.ProbabilityBuckets[i-1], cfg.Risk.ProbabilityBuckets[i]
		if cur.MinEdge <= prev.MinEdge || cur.Probability < prev.Probability {
			return &models.ConfigurationError{Field: "risk.probability_buckets", Reason: "must be strictly ascending by min_edge with non-decreasing probability"}
		}
	}

	if cfg.Edge.ConsensusRule == "sharp" && len(cfg.Edge.SharpBooks) == 0 {
		return &models.ConfigurationError{Field: "edge.sharp_books", Reason: "required when consensus_rule is sharp"}
	}

	seen := make(map[string]bool, len(cfg.Acquisition.Sources))
	for _, src := range cfg.Acquisition.Sources {
		if seen[src.Name] {
			return &models.ConfigurationError{Field: "acquisition.sources", Reason: fmt.Sprintf("duplicate source name %q", src.Name)}
		}
		seen[src.Name] = true
	}

	if cfg.IsProduction() && cfg.Database.Enabled && cfg.Database.SSLMode == "disable" {
		return &models.ConfigurationError{Field: "database.ssl_mode", Reason: "production requires 'require' or 'verify-full'"}
	}

	if cfg.Database.Enabled && cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return &models.ConfigurationError{Field: "database.max_idle_connections", Reason: "cannot exceed max_connections"}
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.Namespace()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max", "len":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "consensus":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: median, sharp\n", field)
		case "eventtype":
			errMsg += fmt.Sprintf("- Field '%s' has unknown event type '%v'\n", field, value)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		for _, src := range cfg.Acquisition.Sources {
			if src.Enabled && isTestCredential(src.APIKey) {
				return fmt.Errorf("production environment should not use test credentials for source %s", src.Name)
			}
		}
	}
	return nil
}

func isTestCredential(credential string) bool {
	if credential == "" {
		return false
	}
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}
	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}
	return false
}
