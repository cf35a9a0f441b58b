package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/database"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// LogicalFKRepository provides data access for curated logical foreign keys.
type LogicalFKRepository interface {
	// Upsert inserts a detector candidate as SUGGESTED or refreshes the
	// existing row on the identity tuple. A REJECTED row keeps its
	// status, method and score; only the rejected score, the method
	// union and last_seen_at move. Returns the row id and whether a new
	// row was created.
	Upsert(ctx context.Context, fk *models.LogicalForeignKey) (uuid.UUID, bool, error)

	// CreateManual inserts a user-authored CONFIRMED edge. A duplicate
	// identity tuple is a conflict, not an upsert; the user should be
	// told the relationship already exists.
	CreateManual(ctx context.Context, fk *models.LogicalForeignKey) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.LogicalForeignKey, error)

	// ListByTable returns edges touching the table, SUGGESTED first,
	// then by confidence descending.
	ListByTable(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error)

	ListConfirmedByProject(ctx context.Context, projectID uuid.UUID) ([]*models.LogicalForeignKey, error)

	// SetStatus performs a compare-and-set transition: the update only
	// lands if the row is still in the expected status.
	SetStatus(ctx context.Context, id uuid.UUID, expected models.LogicalFKStatus, fk *models.LogicalForeignKey) (bool, error)

	Delete(ctx context.Context, id uuid.UUID) error
}

type logicalFKRepository struct {
	db *database.DB
}

// NewLogicalFKRepository creates a new LogicalFKRepository.
func NewLogicalFKRepository(db *database.DB) LogicalFKRepository {
	return &logicalFKRepository{db: db}
}

var _ LogicalFKRepository = (*logicalFKRepository)(nil)

const logicalFKColumns = `
	id, project_id, source_table_id, source_column_ids, target_table_id, target_column_ids,
	discovery_method, discovery_methods, confidence_score, status, rejected_score,
	confirmed_by, confirmed_at, notes, created_at, last_seen_at`

func (r *logicalFKRepository) Upsert(ctx context.Context, fk *models.LogicalForeignKey) (uuid.UUID, bool, error) {
	if err := fk.Validate(); err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid logical fk: %w", err)
	}
	if fk.ID == uuid.Nil {
		fk.ID = uuid.New()
	}
	now := time.Now()

	// REJECTED rows stay rejected: re-detection only refreshes the
	// rejected score and the method union, never the status. MANUAL
	// rows keep their provenance and score when a detector later finds
	// the same pair.
	query := `
		INSERT INTO engine_logical_foreign_keys (
			id, project_id, source_table_id, source_column_ids, target_table_id, target_column_ids,
			discovery_method, discovery_methods, confidence_score, status, created_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'SUGGESTED', $10, $10)
		ON CONFLICT (project_id, source_table_id, source_column_ids, target_table_id, target_column_ids)
		DO UPDATE SET
			confidence_score = CASE
				WHEN engine_logical_foreign_keys.status = 'REJECTED'
				  OR engine_logical_foreign_keys.discovery_method = 'MANUAL'
				THEN engine_logical_foreign_keys.confidence_score
				ELSE EXCLUDED.confidence_score END,
			rejected_score = CASE
				WHEN engine_logical_foreign_keys.status = 'REJECTED'
				THEN EXCLUDED.confidence_score
				ELSE engine_logical_foreign_keys.rejected_score END,
			discovery_method = CASE
				WHEN engine_logical_foreign_keys.status = 'REJECTED'
				  OR engine_logical_foreign_keys.discovery_method = 'MANUAL'
				THEN engine_logical_foreign_keys.discovery_method
				ELSE EXCLUDED.discovery_method END,
			discovery_methods = ARRAY(
				SELECT DISTINCT m
				FROM unnest(engine_logical_foreign_keys.discovery_methods || EXCLUDED.discovery_methods) AS m
				ORDER BY m),
			last_seen_at = EXCLUDED.last_seen_at
		RETURNING id, (xmax = 0) AS created`

	var (
		id      uuid.UUID
		created bool
	)
	err := r.db.QueryRow(ctx, query,
		fk.ID, fk.ProjectID, fk.SourceTableID, fk.SourceColumnIDs, fk.TargetTableID, fk.TargetColumnIDs,
		fk.DiscoveryMethod, methodStrings(fk.DiscoveryMethods), fk.ConfidenceScore, now,
	).Scan(&id, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to upsert logical fk: %w", err)
	}

	return id, created, nil
}

func (r *logicalFKRepository) CreateManual(ctx context.Context, fk *models.LogicalForeignKey) error {
	if err := fk.Validate(); err != nil {
		return fmt.Errorf("invalid logical fk: %w", err)
	}
	if fk.ID == uuid.Nil {
		fk.ID = uuid.New()
	}
	now := time.Now()
	fk.CreatedAt = now
	fk.LastSeenAt = now

	query := `
		INSERT INTO engine_logical_foreign_keys (
			id, project_id, source_table_id, source_column_ids, target_table_id, target_column_ids,
			discovery_method, discovery_methods, confidence_score, status,
			confirmed_by, confirmed_at, notes, created_at, last_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

	_, err := r.db.Exec(ctx, query,
		fk.ID, fk.ProjectID, fk.SourceTableID, fk.SourceColumnIDs, fk.TargetTableID, fk.TargetColumnIDs,
		fk.DiscoveryMethod, methodStrings(fk.DiscoveryMethods), fk.ConfidenceScore, fk.Status,
		fk.ConfirmedBy, fk.ConfirmedAt, fk.Notes, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("logical fk already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create manual logical fk: %w", err)
	}

	return nil
}

func (r *logicalFKRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LogicalForeignKey, error) {
	query := `SELECT ` + logicalFKColumns + ` FROM engine_logical_foreign_keys WHERE id = $1`

	fk, err := scanLogicalFK(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return fk, nil
}

func (r *logicalFKRepository) ListByTable(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error) {
	query := `
		SELECT ` + logicalFKColumns + `
		FROM engine_logical_foreign_keys
		WHERE project_id = $1 AND (source_table_id = $2 OR target_table_id = $2)
		ORDER BY CASE status WHEN 'SUGGESTED' THEN 0 WHEN 'CONFIRMED' THEN 1 ELSE 2 END,
		         confidence_score DESC, created_at`

	return r.queryLogicalFKs(ctx, query, projectID, tableID)
}

func (r *logicalFKRepository) ListConfirmedByProject(ctx context.Context, projectID uuid.UUID) ([]*models.LogicalForeignKey, error) {
	query := `
		SELECT ` + logicalFKColumns + `
		FROM engine_logical_foreign_keys
		WHERE project_id = $1 AND status = 'CONFIRMED'
		ORDER BY source_table_id, target_table_id`

	return r.queryLogicalFKs(ctx, query, projectID)
}

func (r *logicalFKRepository) SetStatus(ctx context.Context, id uuid.UUID, expected models.LogicalFKStatus, fk *models.LogicalForeignKey) (bool, error) {
	query := `
		UPDATE engine_logical_foreign_keys
		SET status = $2, rejected_score = $3, confirmed_by = $4, confirmed_at = $5,
		    notes = COALESCE($6, notes)
		WHERE id = $1 AND status = $7`

	tag, err := r.db.Exec(ctx, query,
		id, fk.Status, fk.RejectedScore, fk.ConfirmedBy, fk.ConfirmedAt, fk.Notes, expected,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set logical fk status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *logicalFKRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM engine_logical_foreign_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete logical fk: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *logicalFKRepository) queryLogicalFKs(ctx context.Context, query string, args ...any) ([]*models.LogicalForeignKey, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logical fks: %w", err)
	}
	defer rows.Close()

	var fks []*models.LogicalForeignKey
	for rows.Next() {
		fk, err := scanLogicalFK(rows)
		if err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating logical fks: %w", err)
	}

	return fks, nil
}

func scanLogicalFK(row pgx.Row) (*models.LogicalForeignKey, error) {
	var (
		fk      models.LogicalForeignKey
		methods []string
	)
	err := row.Scan(
		&fk.ID, &fk.ProjectID, &fk.SourceTableID, &fk.SourceColumnIDs, &fk.TargetTableID, &fk.TargetColumnIDs,
		&fk.DiscoveryMethod, &methods, &fk.ConfidenceScore, &fk.Status, &fk.RejectedScore,
		&fk.ConfirmedBy, &fk.ConfirmedAt, &fk.Notes, &fk.CreatedAt, &fk.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan logical fk: %w", err)
	}

	fk.DiscoveryMethods = make([]models.DiscoveryMethod, len(methods))
	for i, m := range methods {
		fk.DiscoveryMethods[i] = models.DiscoveryMethod(m)
	}
	return &fk, nil
}

func methodStrings(methods []models.DiscoveryMethod) []string {
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}
