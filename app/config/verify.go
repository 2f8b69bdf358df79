package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

const (
	minIdle       = time.Minute
	maxIdle       = 24 * time.Hour
	maxClickDelay = 30 * time.Second
	maxScrollStep = 10000
)

//go:embed schema.json
var embeddedSchemaData []byte

// VerifyAgainstEmbeddedSchema validates config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	var schema map[string]interface{}
	if err := json.Unmarshal(embeddedSchemaData, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	if err := Verify(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Verify performs basic validation of the loaded config
func Verify(cfg *Config) error {
	if cfg.Behavior.MaxIdle != 0 {
		if cfg.Behavior.MaxIdle.Value() < minIdle {
			return fmt.Errorf("behavior.max_idle must be at least %v", minIdle)
		}
		if cfg.Behavior.MaxIdle.Value() > maxIdle {
			return fmt.Errorf("behavior.max_idle must not exceed %v", maxIdle)
		}
	}

	if cfg.Behavior.ClickDelay.Value() < 0 || cfg.Behavior.ClickDelay.Value() > maxClickDelay {
		return fmt.Errorf("behavior.click_delay must be between 0 and %v", maxClickDelay)
	}

	if cfg.Behavior.ScrollStep < 0 || cfg.Behavior.ScrollStep > maxScrollStep {
		return fmt.Errorf("behavior.scroll_step must be between 0 and %d", maxScrollStep)
	}

	if cfg.Behavior.MaxApplications < 0 {
		return fmt.Errorf("behavior.max_applications can't be negative")
	}

	for q, a := range cfg.Answers {
		if strings.TrimSpace(q) == "" {
			return fmt.Errorf("answers: empty question key")
		}
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("answers: empty answer for %q", q)
		}
	}

	if cfg.State.File != "" && cfg.State.DB != "" && cfg.State.File == cfg.State.DB {
		return fmt.Errorf("state.file and state.db point to the same path %q", cfg.State.File)
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
