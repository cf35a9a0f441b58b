package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Discovery methods for logical foreign keys.
type DiscoveryMethod string

const (
	DiscoveryMethodManual         DiscoveryMethod = "MANUAL"
	DiscoveryMethodNameConvention DiscoveryMethod = "NAME_CONVENTION"
	DiscoveryMethodSPJoin         DiscoveryMethod = "SP_JOIN"
	DiscoveryMethodCorroborated   DiscoveryMethod = "CORROBORATED"
)

// LogicalFKStatus represents the curation state of a logical foreign key.
type LogicalFKStatus string

const (
	LogicalFKStatusSuggested LogicalFKStatus = "SUGGESTED"
	LogicalFKStatusConfirmed LogicalFKStatus = "CONFIRMED"
	LogicalFKStatusRejected  LogicalFKStatus = "REJECTED"
)

// ValidTransition reports whether a curation transition is permitted.
// Confirm reaches CONFIRMED from SUGGESTED or REJECTED (undo of a
// rejection). Reject reaches REJECTED from SUGGESTED or CONFIRMED.
// Delete is allowed from any state and is not modeled here.
func ValidTransition(from, to LogicalFKStatus) bool {
	switch to {
	case LogicalFKStatusConfirmed:
		return from == LogicalFKStatusSuggested || from == LogicalFKStatusRejected
	case LogicalFKStatusRejected:
		return from == LogicalFKStatusSuggested || from == LogicalFKStatusConfirmed
	default:
		return false
	}
}

// LogicalForeignKey is a curated table-level relationship that the schema
// does not enforce. Identity is (project_id, source_table_id,
// source_column_ids, target_table_id, target_column_ids), column order
// sensitive. Stored in engine_logical_foreign_keys.
type LogicalForeignKey struct {
	ID               uuid.UUID         `json:"id"`
	ProjectID        uuid.UUID         `json:"project_id"`
	SourceTableID    int64             `json:"source_table_id"`
	SourceColumnIDs  []int64           `json:"source_column_ids"`
	TargetTableID    int64             `json:"target_table_id"`
	TargetColumnIDs  []int64           `json:"target_column_ids"`
	DiscoveryMethod  DiscoveryMethod   `json:"discovery_method"`
	DiscoveryMethods []DiscoveryMethod `json:"discovery_methods"` // union of contributing methods
	ConfidenceScore  float64           `json:"confidence_score"`
	Status           LogicalFKStatus   `json:"status"`
	RejectedScore    *float64          `json:"rejected_score,omitempty"` // score at time of rejection
	ConfirmedBy      *string           `json:"confirmed_by,omitempty"`
	ConfirmedAt      *time.Time        `json:"confirmed_at,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	LastSeenAt       time.Time         `json:"last_seen_at"`
}

// Validate checks the structural invariants on the column lists.
func (fk *LogicalForeignKey) Validate() error {
	if len(fk.SourceColumnIDs) == 0 || len(fk.TargetColumnIDs) == 0 {
		return fmt.Errorf("column lists must be non-empty")
	}
	if len(fk.SourceColumnIDs) != len(fk.TargetColumnIDs) {
		return fmt.Errorf("source and target column lists must have equal length (got %d and %d)",
			len(fk.SourceColumnIDs), len(fk.TargetColumnIDs))
	}
	return nil
}

// SelfReferential reports whether source and target are the same table.
// Self references are permitted but surfaced to the caller as a warning.
func (fk *LogicalForeignKey) SelfReferential() bool {
	return fk.SourceTableID == fk.TargetTableID
}

// IsManual reports whether the edge was created by a user rather than a
// detector. Manual edges have no suggestion provenance to revert to.
func (fk *LogicalForeignKey) IsManual() bool {
	return fk.DiscoveryMethod == DiscoveryMethodManual
}
