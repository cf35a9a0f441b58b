package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// tuningOverrides mirrors DetectionConfig with optional fields so a
// project file only needs to state the values it changes.
type tuningOverrides struct {
	NameConventionScore          *float64 `yaml:"name_convention_score"`
	NameConventionCompositeScore *float64 `yaml:"name_convention_composite_score"`
	SPJoinScore                  *float64 `yaml:"sp_join_score"`
	CorroborationBonus           *float64 `yaml:"corroboration_bonus"`
	LowConfidenceFloor           *float64 `yaml:"low_confidence_floor"`
	MaxTraversalDepth            *int     `yaml:"max_traversal_depth"`
	ApprovalRiskThreshold        *int     `yaml:"approval_risk_threshold"`
	RiskWeightCritical           *int     `yaml:"risk_weight_critical"`
	RiskWeightHigh               *int     `yaml:"risk_weight_high"`
	RiskWeightMedium             *int     `yaml:"risk_weight_medium"`
	RiskWeightLow                *int     `yaml:"risk_weight_low"`
	RiskScoreCap                 *int     `yaml:"risk_score_cap"`
}

// DetectionForProject returns the detection config with any per-project
// tuning file applied on top of the deployment defaults. A missing file
// means no overrides.
func (c *Config) DetectionForProject(projectID uuid.UUID) (DetectionConfig, error) {
	out := c.Detection
	if c.TuningDir == "" {
		return out, nil
	}

	path := filepath.Join(c.TuningDir, projectID.String()+".yaml")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out, nil
		}
		return out, fmt.Errorf("open tuning file: %w", err)
	}
	defer f.Close()

	if err := applyTuningOverrides(f, &out); err != nil {
		return out, fmt.Errorf("apply tuning for project %s: %w", projectID, err)
	}
	return out, nil
}

// applyTuningOverrides decodes YAML overrides from r onto cfg and
// revalidates the result.
func applyTuningOverrides(r io.Reader, cfg *DetectionConfig) error {
	var ov tuningOverrides
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&ov); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode tuning overrides: %w", err)
	}

	setF := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setI := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setF(&cfg.NameConventionScore, ov.NameConventionScore)
	setF(&cfg.NameConventionCompositeScore, ov.NameConventionCompositeScore)
	setF(&cfg.SPJoinScore, ov.SPJoinScore)
	setF(&cfg.CorroborationBonus, ov.CorroborationBonus)
	setF(&cfg.LowConfidenceFloor, ov.LowConfidenceFloor)
	setI(&cfg.MaxTraversalDepth, ov.MaxTraversalDepth)
	setI(&cfg.ApprovalRiskThreshold, ov.ApprovalRiskThreshold)
	setI(&cfg.RiskWeightCritical, ov.RiskWeightCritical)
	setI(&cfg.RiskWeightHigh, ov.RiskWeightHigh)
	setI(&cfg.RiskWeightMedium, ov.RiskWeightMedium)
	setI(&cfg.RiskWeightLow, ov.RiskWeightLow)
	setI(&cfg.RiskScoreCap, ov.RiskScoreCap)

	return cfg.Validate()
}
