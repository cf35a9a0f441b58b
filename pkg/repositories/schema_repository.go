package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/database"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// SchemaRepository is the engine's view over stored schema metadata:
// the entity registry tables that sit underneath detection and impact
// analysis. Reads produce an immutable snapshot; writes only happen
// during a schema sync.
type SchemaRepository interface {
	// GetSnapshot loads the full schema snapshot for a project.
	GetSnapshot(ctx context.Context, projectID uuid.UUID) (*models.SchemaSnapshot, error)

	// ReplaceSnapshot upserts tables, columns and routines from a live
	// introspection, assigning registry ids to new entities and
	// filling them back into the snapshot. Entities that vanished from
	// the source are removed, cascading to their edges.
	ReplaceSnapshot(ctx context.Context, projectID uuid.UUID, snap *models.SchemaSnapshot) error

	// SetTableCriticality records the business criticality level (1-5)
	// the impact analyzer weighs entities by.
	SetTableCriticality(ctx context.Context, projectID uuid.UUID, tableID int64, level int) error
}

type schemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a new SchemaRepository.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

var _ SchemaRepository = (*schemaRepository)(nil)

func (r *schemaRepository) GetSnapshot(ctx context.Context, projectID uuid.UUID) (*models.SchemaSnapshot, error) {
	snap := &models.SchemaSnapshot{ProjectID: projectID}

	tableQuery := `
		SELECT id, name, criticality_level
		FROM engine_schema_tables
		WHERE project_id = $1
		ORDER BY name`

	rows, err := r.db.Query(ctx, tableQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema tables: %w", err)
	}
	defer rows.Close()

	tablesByID := make(map[int64]*models.SnapshotTable)
	for rows.Next() {
		var t models.SnapshotTable
		if err := rows.Scan(&t.ID, &t.Name, &t.CriticalityLevel); err != nil {
			return nil, fmt.Errorf("failed to scan schema table: %w", err)
		}
		tablesByID[t.ID] = &t
		snap.Tables = append(snap.Tables, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema tables: %w", err)
	}

	columnQuery := `
		SELECT c.id, c.table_id, c.name, c.data_type, c.is_nullable, c.is_primary_key
		FROM engine_schema_columns c
		JOIN engine_schema_tables t ON c.table_id = t.id
		WHERE t.project_id = $1
		ORDER BY c.table_id, c.ordinal_position`

	colRows, err := r.db.Query(ctx, columnQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var (
			c       models.SnapshotColumn
			tableID int64
		)
		if err := colRows.Scan(&c.ID, &tableID, &c.Name, &c.DataType, &c.IsNullable, &c.IsPrimaryKey); err != nil {
			return nil, fmt.Errorf("failed to scan schema column: %w", err)
		}
		if t, ok := tablesByID[tableID]; ok {
			t.Columns = append(t.Columns, &c)
		}
	}
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema columns: %w", err)
	}

	routineQuery := `
		SELECT id, routine_type, name, definition
		FROM engine_schema_routines
		WHERE project_id = $1
		ORDER BY name`

	routineRows, err := r.db.Query(ctx, routineQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema routines: %w", err)
	}
	defer routineRows.Close()

	for routineRows.Next() {
		var rt models.SnapshotRoutine
		if err := routineRows.Scan(&rt.ID, &rt.Type, &rt.Name, &rt.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan schema routine: %w", err)
		}
		snap.Routines = append(snap.Routines, &rt)
	}
	if err := routineRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schema routines: %w", err)
	}

	return snap, nil
}

func (r *schemaRepository) ReplaceSnapshot(ctx context.Context, projectID uuid.UUID, snap *models.SchemaSnapshot) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	keepTables := make([]int64, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		err := tx.QueryRow(ctx, `
			INSERT INTO engine_schema_tables (project_id, name, criticality_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (project_id, name)
			DO UPDATE SET criticality_level = CASE
				WHEN EXCLUDED.criticality_level > 0 THEN EXCLUDED.criticality_level
				ELSE engine_schema_tables.criticality_level END
			RETURNING id`,
			projectID, t.Name, t.CriticalityLevel,
		).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert schema table %s: %w", t.Name, err)
		}
		keepTables = append(keepTables, t.ID)

		keepColumns := make([]int64, 0, len(t.Columns))
		for pos, c := range t.Columns {
			err := tx.QueryRow(ctx, `
				INSERT INTO engine_schema_columns (table_id, name, data_type, is_nullable, is_primary_key, ordinal_position)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (table_id, name)
				DO UPDATE SET data_type = EXCLUDED.data_type,
				              is_nullable = EXCLUDED.is_nullable,
				              is_primary_key = EXCLUDED.is_primary_key,
				              ordinal_position = EXCLUDED.ordinal_position
				RETURNING id`,
				t.ID, c.Name, c.DataType, c.IsNullable, c.IsPrimaryKey, pos+1,
			).Scan(&c.ID)
			if err != nil {
				return fmt.Errorf("failed to upsert schema column %s.%s: %w", t.Name, c.Name, err)
			}
			keepColumns = append(keepColumns, c.ID)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM engine_schema_columns WHERE table_id = $1 AND NOT (id = ANY($2))`,
			t.ID, keepColumns,
		); err != nil {
			return fmt.Errorf("failed to prune columns of %s: %w", t.Name, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM engine_schema_tables WHERE project_id = $1 AND NOT (id = ANY($2))`,
		projectID, keepTables,
	); err != nil {
		return fmt.Errorf("failed to prune schema tables: %w", err)
	}

	keepRoutines := make([]int64, 0, len(snap.Routines))
	for _, rt := range snap.Routines {
		err := tx.QueryRow(ctx, `
			INSERT INTO engine_schema_routines (project_id, routine_type, name, definition)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (project_id, name)
			DO UPDATE SET routine_type = EXCLUDED.routine_type,
			              definition = EXCLUDED.definition
			RETURNING id`,
			projectID, rt.Type, rt.Name, rt.Definition,
		).Scan(&rt.ID)
		if err != nil {
			return fmt.Errorf("failed to upsert schema routine %s: %w", rt.Name, err)
		}
		keepRoutines = append(keepRoutines, rt.ID)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM engine_schema_routines WHERE project_id = $1 AND NOT (id = ANY($2))`,
		projectID, keepRoutines,
	); err != nil {
		return fmt.Errorf("failed to prune schema routines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot replace: %w", err)
	}
	return nil
}

func (r *schemaRepository) SetTableCriticality(ctx context.Context, projectID uuid.UUID, tableID int64, level int) error {
	if level < 1 || level > 5 {
		return fmt.Errorf("criticality level must be 1-5, got %d", level)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE engine_schema_tables SET criticality_level = $3 WHERE project_id = $1 AND id = $2`,
		projectID, tableID, level,
	)
	if err != nil {
		return fmt.Errorf("failed to set table criticality: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
