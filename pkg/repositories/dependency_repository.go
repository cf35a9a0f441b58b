package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relgraph/relgraph-engine/pkg/database"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// DependencyRepository provides data access for typed dependency edges.
type DependencyRepository interface {
	// Upsert inserts the edge or refreshes score and timestamp on the
	// uniqueness tuple. Concurrent detector runs race safely on the
	// unique constraint instead of read-then-write.
	Upsert(ctx context.Context, dep *models.Dependency) (uuid.UUID, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Dependency, error)
	DeleteByProject(ctx context.Context, projectID uuid.UUID) error
}

type dependencyRepository struct {
	db *database.DB
}

// NewDependencyRepository creates a new DependencyRepository.
func NewDependencyRepository(db *database.DB) DependencyRepository {
	return &dependencyRepository{db: db}
}

var _ DependencyRepository = (*dependencyRepository)(nil)

func (r *dependencyRepository) Upsert(ctx context.Context, dep *models.Dependency) (uuid.UUID, error) {
	if dep.ID == uuid.Nil {
		dep.ID = uuid.New()
	}
	if dep.DiscoveredAt.IsZero() {
		dep.DiscoveredAt = time.Now()
	}

	query := `
		INSERT INTO engine_dependencies (
			id, project_id, source_type, source_id, target_type, target_id,
			dependency_type, confidence_score, discovered_by, discovered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (project_id, source_type, source_id, target_type, target_id, dependency_type)
		DO UPDATE SET
			confidence_score = EXCLUDED.confidence_score,
			discovered_at = EXCLUDED.discovered_at
		RETURNING id`

	var id uuid.UUID
	err := r.db.QueryRow(ctx, query,
		dep.ID, dep.ProjectID, dep.Source.Type, dep.Source.ID, dep.Target.Type, dep.Target.ID,
		dep.DependencyType, dep.ConfidenceScore, dep.DiscoveredBy, dep.DiscoveredAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert dependency: %w", err)
	}

	return id, nil
}

func (r *dependencyRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Dependency, error) {
	query := `
		SELECT id, project_id, source_type, source_id, target_type, target_id,
		       dependency_type, confidence_score, discovered_by, discovered_at
		FROM engine_dependencies
		WHERE project_id = $1
		ORDER BY source_type, source_id, target_type, target_id`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	var deps []*models.Dependency
	for rows.Next() {
		var d models.Dependency
		if err := rows.Scan(
			&d.ID, &d.ProjectID, &d.Source.Type, &d.Source.ID, &d.Target.Type, &d.Target.ID,
			&d.DependencyType, &d.ConfidenceScore, &d.DiscoveredBy, &d.DiscoveredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}

func (r *dependencyRepository) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM engine_dependencies WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete dependencies: %w", err)
	}
	return nil
}
