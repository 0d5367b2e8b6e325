// Package config loads the orchestrator's configuration from environment
// variables and validates it against the ranges spec.md §6 requires.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ValidationError is raised when a config value is present but out of its
// permitted range, or names an unknown provider type. Modeled on the
// teacher's fail-fast CLI validation in cmd/opencode/commands/run.go.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// AgentConfig is the {provider-type, model?} triple spec.md §6 requires for
// each of the architect/navigator/driver roles.
type AgentConfig struct {
	ProviderType string
	Model        string
}

// Config holds every environment-driven setting the orchestrator consults.
type Config struct {
	Architect AgentConfig
	Navigator AgentConfig
	Driver    AgentConfig

	NavigatorMaxTurns int
	DriverMaxTurns    int
	MaxPromptLength   int
	MaxPromptFileSize int64

	SessionHardLimit        time.Duration
	ToolCompletionTimeout   time.Duration
	PermissionRequestTimeout time.Duration

	// LogDir is where the append-only diagnostic event log lives (spec §6
	// "Persisted state"), defaulting to the XDG state directory.
	LogDir string
}

// providersRequiringModel lists backends whose model id cannot be defaulted,
// per spec.md §6: "a provider whose backend requires explicit model
// identification... rejects the config if absent."
var providersRequiringModel = map[string]bool{
	"ark":     true,
	"bedrock": true,
}

var knownProviderTypes = map[string]bool{
	"anthropic": true,
	"openai":    true,
	"ark":       true,
	"bedrock":   true,
}

// Load reads configuration from the environment, applying the defaults and
// range validation spec.md §6 specifies. projectDir is used only to locate an
// optional local .env file for development convenience, the same way the
// teacher's cmd/opencode wiring loads one.
func Load(projectDir string) (*Config, error) {
	if projectDir != "" {
		_ = godotenv.Load(filepath.Join(projectDir, ".env"))
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Architect: AgentConfig{ProviderType: envOr("TRIO_ARCHITECT_PROVIDER", "anthropic"), Model: os.Getenv("TRIO_ARCHITECT_MODEL")},
		Navigator: AgentConfig{ProviderType: envOr("TRIO_NAVIGATOR_PROVIDER", "anthropic"), Model: os.Getenv("TRIO_NAVIGATOR_MODEL")},
		Driver:    AgentConfig{ProviderType: envOr("TRIO_DRIVER_PROVIDER", "anthropic"), Model: os.Getenv("TRIO_DRIVER_MODEL")},

		NavigatorMaxTurns: envInt("TRIO_NAVIGATOR_MAX_TURNS", 40),
		DriverMaxTurns:    envInt("TRIO_DRIVER_MAX_TURNS", 25),
		MaxPromptLength:   envInt("TRIO_MAX_PROMPT_LENGTH", 4000),
		MaxPromptFileSize: int64(envInt("TRIO_MAX_PROMPT_FILE_SIZE", 100*1024)),

		SessionHardLimit:         envDuration("TRIO_SESSION_HARD_LIMIT", 30*time.Minute),
		ToolCompletionTimeout:    envDuration("TRIO_TOOL_COMPLETION_TIMEOUT", 120*time.Second),
		PermissionRequestTimeout: envDuration("TRIO_PERMISSION_REQUEST_TIMEOUT", 30*time.Second),

		LogDir: envOr("TRIO_LOG_DIR", GetPaths().State),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces spec.md §6's range and provider-identification rules.
func (c *Config) Validate() error {
	if err := validateRange("navigator-max-turns", c.NavigatorMaxTurns, 10, 100); err != nil {
		return err
	}
	if err := validateRange("driver-max-turns", c.DriverMaxTurns, 5, 50); err != nil {
		return err
	}
	if err := validateRange("max-prompt-length", c.MaxPromptLength, 10, 50000); err != nil {
		return err
	}
	if err := validateRange64("max-prompt-file-size", c.MaxPromptFileSize, 1024, 1024*1024); err != nil {
		return err
	}
	if c.SessionHardLimit < time.Minute || c.SessionHardLimit > 8*time.Hour {
		return &ValidationError{Field: "session-hard-limit", Reason: fmt.Sprintf("%s out of range [1m, 8h]", c.SessionHardLimit)}
	}

	for field, agent := range map[string]AgentConfig{"architect": c.Architect, "navigator": c.Navigator, "driver": c.Driver} {
		if !knownProviderTypes[agent.ProviderType] {
			return &ValidationError{Field: field + "-provider", Reason: fmt.Sprintf("unknown provider type %q", agent.ProviderType)}
		}
		if providersRequiringModel[agent.ProviderType] && agent.Model == "" {
			return &ValidationError{Field: field + "-model", Reason: fmt.Sprintf("provider %q requires an explicit model id", agent.ProviderType)}
		}
	}
	return nil
}

func validateRange(field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%d out of range [%d, %d]", v, lo, hi)}
	}
	return nil
}

func validateRange64(field string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%d out of range [%d, %d]", v, lo, hi)}
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
