package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/detect"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
	enginesql "github.com/relgraph/relgraph-engine/pkg/sql"
)

// Detector is one heuristic that proposes logical FK candidates from a
// schema snapshot. Detectors are pure; the service owns persistence.
type Detector interface {
	Method() models.DiscoveryMethod
	Detect(snap *models.SchemaSnapshot, physical []*models.PhysicalForeignKey) ([]models.Candidate, []string)
}

// DetectionResult summarizes one detection run.
type DetectionResult struct {
	NewCandidates     int      `json:"new_candidates"`
	UpdatedCandidates int      `json:"updated_candidates"`
	DependencyEdges   int      `json:"dependency_edges"`
	Warnings          []string `json:"warnings,omitempty"`
}

// DetectionService runs the detector pipeline for a project.
type DetectionService interface {
	// DetectCandidates runs all detectors against the stored snapshot,
	// corroborates overlapping proposals and upserts the survivors as
	// SUGGESTED logical FKs. It also refreshes the routine-to-table
	// dependency edges observed in procedure text. Reruns are
	// idempotent: the same schema yields updates, not duplicates.
	DetectCandidates(ctx context.Context, projectID uuid.UUID) (*DetectionResult, error)
}

type detectionService struct {
	cfg            *config.Config
	schemaRepo     repositories.SchemaRepository
	logicalRepo    repositories.LogicalFKRepository
	physicalRepo   repositories.PhysicalFKRepository
	dependencyRepo repositories.DependencyRepository
	logger         *zap.Logger
}

// NewDetectionService creates a new DetectionService.
func NewDetectionService(
	cfg *config.Config,
	schemaRepo repositories.SchemaRepository,
	logicalRepo repositories.LogicalFKRepository,
	physicalRepo repositories.PhysicalFKRepository,
	dependencyRepo repositories.DependencyRepository,
	logger *zap.Logger,
) DetectionService {
	return &detectionService{
		cfg:            cfg,
		schemaRepo:     schemaRepo,
		logicalRepo:    logicalRepo,
		physicalRepo:   physicalRepo,
		dependencyRepo: dependencyRepo,
		logger:         logger.Named("detection"),
	}
}

var _ DetectionService = (*detectionService)(nil)

func (s *detectionService) DetectCandidates(ctx context.Context, projectID uuid.UUID) (*DetectionResult, error) {
	detectionCfg, err := s.cfg.DetectionForProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load detection config: %w", err)
	}

	snap, err := s.schemaRepo.GetSnapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema snapshot: %w", err)
	}
	physical, err := s.physicalRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load physical fks: %w", err)
	}

	detectors := []Detector{
		detect.NewNameConventionDetector(detectionCfg),
		detect.NewSPJoinDetector(detectionCfg),
	}

	// Detectors only read the snapshot, so they run concurrently.
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []models.Candidate
		warnings   []string
	)
	for _, d := range detectors {
		wg.Add(1)
		go func(d Detector) {
			defer wg.Done()
			cands, warns := d.Detect(snap, physical)
			mu.Lock()
			candidates = append(candidates, cands...)
			warnings = append(warnings, warns...)
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	result := &DetectionResult{Warnings: warnings}
	covered := physicallyCovered(physical)

	for _, cand := range detect.Corroborate(candidates, detectionCfg) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		// The schema already enforces these; nothing to suggest.
		if covered[cand.Key()] {
			continue
		}
		if warn, ok := validateCandidate(snap, cand.Candidate); !ok {
			result.Warnings = append(result.Warnings, warn)
			continue
		}

		fk := &models.LogicalForeignKey{
			ProjectID:        projectID,
			SourceTableID:    cand.SourceTableID,
			SourceColumnIDs:  cand.SourceColumnIDs,
			TargetTableID:    cand.TargetTableID,
			TargetColumnIDs:  cand.TargetColumnIDs,
			DiscoveryMethod:  cand.Method,
			DiscoveryMethods: cand.Methods,
			ConfidenceScore:  cand.RawScore,
		}
		_, created, err := s.logicalRepo.Upsert(ctx, fk)
		if err != nil {
			return result, fmt.Errorf("failed to store candidate %s: %w", cand.Key(), err)
		}
		if created {
			result.NewCandidates++
		} else {
			result.UpdatedCandidates++
		}
	}

	edges, depWarnings, err := s.refreshDependencies(ctx, projectID, snap)
	if err != nil {
		return result, err
	}
	result.DependencyEdges = edges
	result.Warnings = append(result.Warnings, depWarnings...)

	s.logger.Info("detection run complete",
		zap.String("project_id", projectID.String()),
		zap.Int("new", result.NewCandidates),
		zap.Int("updated", result.UpdatedCandidates),
		zap.Int("dependency_edges", result.DependencyEdges),
		zap.Int("warnings", len(result.Warnings)))

	return result, nil
}

// refreshDependencies rescans routine text for table usages and upserts
// the corresponding typed edges.
func (s *detectionService) refreshDependencies(
	ctx context.Context,
	projectID uuid.UUID,
	snap *models.SchemaSnapshot,
) (int, []string, error) {
	routinesByName := make(map[string]*models.SnapshotRoutine, len(snap.Routines))
	for _, rt := range snap.Routines {
		routinesByName[strings.ToLower(rt.Name)] = rt
	}

	count := 0
	var warnings []string
	for _, rt := range snap.Routines {
		source := models.EntityRef{Type: rt.Type, ID: rt.ID}
		for _, stmt := range enginesql.SplitStatements(rt.Definition) {
			for _, usage := range enginesql.ExtractTableUsages(stmt) {
				target, depType, ok := resolveUsage(snap, routinesByName, usage)
				if !ok {
					continue
				}
				if target.Type == source.Type && target.ID == source.ID {
					continue
				}
				dep := &models.Dependency{
					ProjectID:       projectID,
					Source:          source,
					Target:          target,
					DependencyType:  depType,
					ConfidenceScore: 0.8,
					DiscoveredBy:    "sp-scan",
				}
				if _, err := s.dependencyRepo.Upsert(ctx, dep); err != nil {
					return count, warnings, fmt.Errorf("failed to store dependency %s -> %s: %w",
						source, target, err)
				}
				count++
			}
		}
	}
	return count, warnings, nil
}

// resolveUsage maps a lexical table usage to a registry entity. EXEC
// targets resolve against routines, everything else against tables.
// Unresolvable names are ignored; procedure text routinely references
// temp tables and objects outside the snapshot.
func resolveUsage(
	snap *models.SchemaSnapshot,
	routinesByName map[string]*models.SnapshotRoutine,
	usage enginesql.TableUsage,
) (models.EntityRef, models.DependencyType, bool) {
	if usage.Verb == "EXEC" {
		rt, ok := routinesByName[strings.ToLower(usage.Table)]
		if !ok {
			return models.EntityRef{}, "", false
		}
		return models.EntityRef{Type: rt.Type, ID: rt.ID}, models.DependencyTypeExec, true
	}

	table, ok := snap.TableByName(usage.Table)
	if !ok {
		return models.EntityRef{}, "", false
	}
	var depType models.DependencyType
	switch usage.Verb {
	case "INSERT":
		depType = models.DependencyTypeInsert
	case "UPDATE":
		depType = models.DependencyTypeUpdate
	default:
		depType = models.DependencyTypeSelect
	}
	return models.EntityRef{Type: models.EntityTypeTable, ID: table.ID}, depType, true
}

// physicallyCovered indexes declared constraints by the same identity
// tuple candidates use.
func physicallyCovered(physical []*models.PhysicalForeignKey) map[string]bool {
	covered := make(map[string]bool, len(physical))
	for _, fk := range physical {
		covered[models.Candidate{
			SourceTableID:   fk.SourceTableID,
			SourceColumnIDs: fk.SourceColumnIDs,
			TargetTableID:   fk.TargetTableID,
			TargetColumnIDs: fk.TargetColumnIDs,
		}.Key()] = true
	}
	return covered
}

// validateCandidate cross-checks a candidate's entity ids against the
// snapshot. A detector emitting a dangling reference is a bug, but one
// bad candidate never fails the batch.
func validateCandidate(snap *models.SchemaSnapshot, c models.Candidate) (string, bool) {
	if _, ok := snap.TableByID(c.SourceTableID); !ok {
		return fmt.Sprintf("skipped candidate %s: unknown source table %d", c.Key(), c.SourceTableID), false
	}
	if _, ok := snap.TableByID(c.TargetTableID); !ok {
		return fmt.Sprintf("skipped candidate %s: unknown target table %d", c.Key(), c.TargetTableID), false
	}
	for _, colID := range c.SourceColumnIDs {
		if t, ok := snap.TableForColumn(colID); !ok || t.ID != c.SourceTableID {
			return fmt.Sprintf("skipped candidate %s: column %d does not belong to source table", c.Key(), colID), false
		}
	}
	for _, colID := range c.TargetColumnIDs {
		if t, ok := snap.TableForColumn(colID); !ok || t.ID != c.TargetTableID {
			return fmt.Sprintf("skipped candidate %s: column %d does not belong to target table", c.Key(), colID), false
		}
	}
	return "", true
}
