package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relgraph/relgraph-engine/pkg/database"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// PhysicalFKRepository stores the mirror of the target database's own
// FK constraints. The engine never edits these; a schema sync replaces
// the project's set wholesale.
type PhysicalFKRepository interface {
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PhysicalForeignKey, error)
	ReplaceForProject(ctx context.Context, projectID uuid.UUID, fks []*models.PhysicalForeignKey) error
}

type physicalFKRepository struct {
	db *database.DB
}

// NewPhysicalFKRepository creates a new PhysicalFKRepository.
func NewPhysicalFKRepository(db *database.DB) PhysicalFKRepository {
	return &physicalFKRepository{db: db}
}

var _ PhysicalFKRepository = (*physicalFKRepository)(nil)

func (r *physicalFKRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.PhysicalForeignKey, error) {
	query := `
		SELECT id, project_id, constraint_name, source_table_id, source_column_ids,
		       target_table_id, target_column_ids, on_delete_action
		FROM engine_physical_foreign_keys
		WHERE project_id = $1
		ORDER BY constraint_name`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query physical fks: %w", err)
	}
	defer rows.Close()

	var fks []*models.PhysicalForeignKey
	for rows.Next() {
		var fk models.PhysicalForeignKey
		if err := rows.Scan(
			&fk.ID, &fk.ProjectID, &fk.ConstraintName, &fk.SourceTableID, &fk.SourceColumnIDs,
			&fk.TargetTableID, &fk.TargetColumnIDs, &fk.OnDeleteAction,
		); err != nil {
			return nil, fmt.Errorf("failed to scan physical fk: %w", err)
		}
		fks = append(fks, &fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating physical fks: %w", err)
	}

	return fks, nil
}

func (r *physicalFKRepository) ReplaceForProject(ctx context.Context, projectID uuid.UUID, fks []*models.PhysicalForeignKey) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.Exec(ctx, `DELETE FROM engine_physical_foreign_keys WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to clear physical fks: %w", err)
	}

	query := `
		INSERT INTO engine_physical_foreign_keys (
			id, project_id, constraint_name, source_table_id, source_column_ids,
			target_table_id, target_column_ids, on_delete_action
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, fk := range fks {
		if fk.ID == uuid.Nil {
			fk.ID = uuid.New()
		}
		if _, err := tx.Exec(ctx, query,
			fk.ID, projectID, fk.ConstraintName, fk.SourceTableID, fk.SourceColumnIDs,
			fk.TargetTableID, fk.TargetColumnIDs, fk.OnDeleteAction,
		); err != nil {
			return fmt.Errorf("failed to insert physical fk %s: %w", fk.ConstraintName, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit physical fk replace: %w", err)
	}
	return nil
}
