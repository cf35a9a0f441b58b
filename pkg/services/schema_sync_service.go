package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
	"github.com/relgraph/relgraph-engine/pkg/retry"
)

// SyncResult summarizes one schema sync.
type SyncResult struct {
	Tables      int      `json:"tables"`
	Columns     int      `json:"columns"`
	Routines    int      `json:"routines"`
	ForeignKeys int      `json:"foreign_keys"`
	Warnings    []string `json:"warnings,omitempty"`
}

// SchemaSyncService pulls a live schema out of a customer database and
// stores it as the project's snapshot.
type SchemaSyncService interface {
	// Sync introspects the source and replaces the stored snapshot and
	// physical FK mirror. Registry ids stay stable across syncs for
	// entities that keep their names.
	Sync(ctx context.Context, projectID uuid.UUID, source datasource.SchemaSource) (*SyncResult, error)
}

type schemaSyncService struct {
	schemaRepo   repositories.SchemaRepository
	physicalRepo repositories.PhysicalFKRepository
	logger       *zap.Logger
}

// NewSchemaSyncService creates a new SchemaSyncService.
func NewSchemaSyncService(
	schemaRepo repositories.SchemaRepository,
	physicalRepo repositories.PhysicalFKRepository,
	logger *zap.Logger,
) SchemaSyncService {
	return &schemaSyncService{
		schemaRepo:   schemaRepo,
		physicalRepo: physicalRepo,
		logger:       logger.Named("schema-sync"),
	}
}

var _ SchemaSyncService = (*schemaSyncService)(nil)

func (s *schemaSyncService) Sync(ctx context.Context, projectID uuid.UUID, source datasource.SchemaSource) (*SyncResult, error) {
	type introspection struct {
		snap *models.SchemaSnapshot
		fks  []models.ForeignKeyInfo
	}

	// Introspection crosses the network to the customer database;
	// transient failures get a few retries before the sync fails.
	intro, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (introspection, error) {
		snap, fks, err := source.Snapshot(ctx)
		return introspection{snap: snap, fks: fks}, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to introspect %s source: %w", source.Kind(), err)
	}
	snap := intro.snap
	snap.ProjectID = projectID

	if err := s.schemaRepo.ReplaceSnapshot(ctx, projectID, snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}

	result := &SyncResult{
		Tables:   len(snap.Tables),
		Routines: len(snap.Routines),
	}
	for _, t := range snap.Tables {
		result.Columns += len(t.Columns)
	}

	physical, warnings := resolveForeignKeys(projectID, snap, intro.fks)
	result.Warnings = warnings
	result.ForeignKeys = len(physical)

	if err := s.physicalRepo.ReplaceForProject(ctx, projectID, physical); err != nil {
		return nil, fmt.Errorf("failed to store physical fks: %w", err)
	}

	s.logger.Info("schema sync complete",
		zap.String("project_id", projectID.String()),
		zap.String("source_kind", source.Kind()),
		zap.Int("tables", result.Tables),
		zap.Int("columns", result.Columns),
		zap.Int("routines", result.Routines),
		zap.Int("foreign_keys", result.ForeignKeys),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// resolveForeignKeys maps name-keyed FK constraints onto the registry
// ids the snapshot was just assigned. A constraint naming an unknown
// table or column is skipped with a warning rather than failing the
// sync; introspection and the snapshot come from the same read, so a
// miss means the source reported something inconsistent.
func resolveForeignKeys(projectID uuid.UUID, snap *models.SchemaSnapshot, infos []models.ForeignKeyInfo) ([]*models.PhysicalForeignKey, []string) {
	var (
		fks      []*models.PhysicalForeignKey
		warnings []string
	)
	for _, info := range infos {
		src, okSrc := snap.TableByName(info.SourceTable)
		tgt, okTgt := snap.TableByName(info.TargetTable)
		if !okSrc || !okTgt {
			warnings = append(warnings, fmt.Sprintf("skipped constraint %s: unknown table", info.ConstraintName))
			continue
		}

		fk := &models.PhysicalForeignKey{
			ProjectID:      projectID,
			ConstraintName: info.ConstraintName,
			SourceTableID:  src.ID,
			TargetTableID:  tgt.ID,
			OnDeleteAction: info.OnDelete,
		}

		ok := len(info.SourceColumns) == len(info.TargetColumns)
		for i := 0; ok && i < len(info.SourceColumns); i++ {
			srcCol, okCol := src.ColumnByName(info.SourceColumns[i])
			if !okCol {
				ok = false
				break
			}
			tgtCol, okCol := tgt.ColumnByName(info.TargetColumns[i])
			if !okCol {
				ok = false
				break
			}
			fk.SourceColumnIDs = append(fk.SourceColumnIDs, srcCol.ID)
			fk.TargetColumnIDs = append(fk.TargetColumnIDs, tgtCol.ID)
		}
		if !ok || len(fk.SourceColumnIDs) == 0 {
			warnings = append(warnings, fmt.Sprintf("skipped constraint %s: unresolvable columns", info.ConstraintName))
			continue
		}

		fks = append(fks, fk)
	}
	return fks, warnings
}
