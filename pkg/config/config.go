package config

import (
	"fmt"
	"net/url"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for relgraph-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8470"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL, engine metadata store)
	Database DatabaseConfig `yaml:"database"`

	// Detection and impact analysis tunables
	Detection DetectionConfig `yaml:"detection"`

	// TuningDir holds optional per-project detection overrides
	// (<project-id>.yaml files). Empty disables per-project tuning.
	TuningDir string `yaml:"tuning_dir" env:"TUNING_DIR" env-default:""`

	// MigrationsPath is the directory golang-migrate reads from.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"relgraph"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"relgraph_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DetectionConfig carries the heuristic weights and impact thresholds.
// These are deployment tunables, not fixed business rules; real schemas
// need different settings, so everything here is overridable per project.
type DetectionConfig struct {
	// Detector raw scores
	NameConventionScore          float64 `yaml:"name_convention_score" env:"DETECT_NAME_CONVENTION_SCORE" env-default:"0.6"`
	NameConventionCompositeScore float64 `yaml:"name_convention_composite_score" env:"DETECT_NAME_CONVENTION_COMPOSITE_SCORE" env-default:"0.5"`
	SPJoinScore                  float64 `yaml:"sp_join_score" env:"DETECT_SP_JOIN_SCORE" env-default:"0.7"`

	// CorroborationBonus is added per additional agreeing method.
	CorroborationBonus float64 `yaml:"corroboration_bonus" env:"DETECT_CORROBORATION_BONUS" env-default:"0.15"`

	// LowConfidenceFloor marks logical edges below this score as
	// unconfirmed in impact reports.
	LowConfidenceFloor float64 `yaml:"low_confidence_floor" env:"DETECT_LOW_CONFIDENCE_FLOOR" env-default:"0.5"`

	// Impact traversal and risk scoring
	MaxTraversalDepth     int `yaml:"max_traversal_depth" env:"IMPACT_MAX_TRAVERSAL_DEPTH" env-default:"3"`
	ApprovalRiskThreshold int `yaml:"approval_risk_threshold" env:"IMPACT_APPROVAL_RISK_THRESHOLD" env-default:"70"`
	RiskWeightCritical    int `yaml:"risk_weight_critical" env:"IMPACT_RISK_WEIGHT_CRITICAL" env-default:"25"`
	RiskWeightHigh        int `yaml:"risk_weight_high" env:"IMPACT_RISK_WEIGHT_HIGH" env-default:"10"`
	RiskWeightMedium      int `yaml:"risk_weight_medium" env:"IMPACT_RISK_WEIGHT_MEDIUM" env-default:"4"`
	RiskWeightLow         int `yaml:"risk_weight_low" env:"IMPACT_RISK_WEIGHT_LOW" env-default:"1"`
	RiskScoreCap          int `yaml:"risk_score_cap" env:"IMPACT_RISK_SCORE_CAP" env-default:"100"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.Detection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects weights that would break scoring invariants.
func (c *DetectionConfig) Validate() error {
	for name, v := range map[string]float64{
		"name_convention_score":           c.NameConventionScore,
		"name_convention_composite_score": c.NameConventionCompositeScore,
		"sp_join_score":                   c.SPJoinScore,
		"corroboration_bonus":             c.CorroborationBonus,
		"low_confidence_floor":            c.LowConfidenceFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if c.MaxTraversalDepth < 1 {
		return fmt.Errorf("max_traversal_depth must be at least 1, got %d", c.MaxTraversalDepth)
	}
	if c.RiskScoreCap < 1 {
		return fmt.Errorf("risk_score_cap must be at least 1, got %d", c.RiskScoreCap)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the postgres:// form of the connection string, which the
// migration runner requires.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, c.SSLMode,
	)
}
