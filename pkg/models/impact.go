package models

// ChangeType is the kind of change being assessed.
type ChangeType string

const (
	ChangeTypeModify ChangeType = "MODIFY"
	ChangeTypeDelete ChangeType = "DELETE"
)

// IsValidChangeType checks if the given change type is valid.
func IsValidChangeType(t ChangeType) bool {
	return t == ChangeTypeModify || t == ChangeTypeDelete
}

// ImpactLevel is the per-entity severity in an impact report.
type ImpactLevel string

const (
	ImpactLevelCritical ImpactLevel = "CRITICAL"
	ImpactLevelHigh     ImpactLevel = "HIGH"
	ImpactLevelMedium   ImpactLevel = "MEDIUM"
	ImpactLevelLow      ImpactLevel = "LOW"
)

// rank orders impact levels for comparisons; higher is more severe.
func (l ImpactLevel) rank() int {
	switch l {
	case ImpactLevelCritical:
		return 3
	case ImpactLevelHigh:
		return 2
	case ImpactLevelMedium:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether l outranks other.
func (l ImpactLevel) MoreSevere(other ImpactLevel) bool {
	return l.rank() > other.rank()
}

// Cap returns l limited to at most max.
func (l ImpactLevel) Cap(max ImpactLevel) ImpactLevel {
	if l.MoreSevere(max) {
		return max
	}
	return l
}

// AffectedEntity is one entry in an impact report.
type AffectedEntity struct {
	Entity   EntityRef   `json:"entity"`
	Name     string      `json:"name"`
	Distance int         `json:"distance"` // shortest hop count from the root
	Level    ImpactLevel `json:"level"`
	Reasons  []string    `json:"reasons,omitempty"`
}

// ImpactReport answers "what breaks if I change this entity". An empty
// report is a valid outcome, not an error.
type ImpactReport struct {
	Root             EntityRef        `json:"root"`
	ChangeType       ChangeType       `json:"change_type"`
	AffectedEntities []AffectedEntity `json:"affected_entities"`
	TotalRiskScore   int              `json:"total_risk_score"`
	RequiresApproval bool             `json:"requires_approval"`
	Warnings         []string         `json:"warnings,omitempty"`
}
