package models

import "github.com/google/uuid"

// OnDeleteAction is the referential action declared on a physical FK.
type OnDeleteAction string

const (
	OnDeleteNoAction   OnDeleteAction = "NO ACTION"
	OnDeleteCascade    OnDeleteAction = "CASCADE"
	OnDeleteSetNull    OnDeleteAction = "SET NULL"
	OnDeleteSetDefault OnDeleteAction = "SET DEFAULT"
	OnDeleteRestrict   OnDeleteAction = "RESTRICT"
)

// Amplifies reports whether deleting the referenced row propagates a
// change into the referencing table (anything other than NO ACTION).
func (a OnDeleteAction) Amplifies() bool {
	return a != "" && a != OnDeleteNoAction
}

// PhysicalForeignKey mirrors a foreign key constraint enforced by the
// target database. Immutable from this engine's perspective; refreshed
// wholesale by a schema sync.
type PhysicalForeignKey struct {
	ID              uuid.UUID      `json:"id"`
	ProjectID       uuid.UUID      `json:"project_id"`
	ConstraintName  string         `json:"constraint_name"`
	SourceTableID   int64          `json:"source_table_id"`
	SourceColumnIDs []int64        `json:"source_column_ids"`
	TargetTableID   int64          `json:"target_table_id"`
	TargetColumnIDs []int64        `json:"target_column_ids"`
	OnDeleteAction  OnDeleteAction `json:"on_delete_action"`
}
