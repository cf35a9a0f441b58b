package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
)

// ImpactService answers "what breaks if I change this entity" by
// walking the project's dependency graph backwards from the entity
// being changed.
type ImpactService interface {
	// Analyze traverses incoming edges (physical FKs, CONFIRMED logical
	// FKs and observed dependencies) breadth-first up to the configured
	// depth and returns a ranked report. An empty report is a valid
	// outcome for an isolated entity.
	Analyze(ctx context.Context, projectID uuid.UUID, root models.EntityRef, change models.ChangeType) (*models.ImpactReport, error)
}

type impactService struct {
	cfg            *config.Config
	schemaRepo     repositories.SchemaRepository
	logicalRepo    repositories.LogicalFKRepository
	physicalRepo   repositories.PhysicalFKRepository
	dependencyRepo repositories.DependencyRepository
	logger         *zap.Logger
}

// NewImpactService creates a new ImpactService.
func NewImpactService(
	cfg *config.Config,
	schemaRepo repositories.SchemaRepository,
	logicalRepo repositories.LogicalFKRepository,
	physicalRepo repositories.PhysicalFKRepository,
	dependencyRepo repositories.DependencyRepository,
	logger *zap.Logger,
) ImpactService {
	return &impactService{
		cfg:            cfg,
		schemaRepo:     schemaRepo,
		logicalRepo:    logicalRepo,
		physicalRepo:   physicalRepo,
		dependencyRepo: dependencyRepo,
		logger:         logger.Named("impact"),
	}
}

var _ ImpactService = (*impactService)(nil)

type edgeKind int

const (
	edgePhysical edgeKind = iota
	edgeLogical
	edgeDependency
)

// impactEdge points from a referenced entity back to the entity that
// depends on it.
type impactEdge struct {
	dependent  models.EntityRef
	kind       edgeKind
	confidence float64
	onDelete   models.OnDeleteAction
	label      string
}

func (s *impactService) Analyze(ctx context.Context, projectID uuid.UUID, root models.EntityRef, change models.ChangeType) (*models.ImpactReport, error) {
	if !models.IsValidChangeType(change) {
		return nil, fmt.Errorf("invalid change type %q: %w", change, apperrors.ErrInvalidReference)
	}

	detectionCfg, err := s.cfg.DetectionForProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load detection config: %w", err)
	}

	snap, err := s.schemaRepo.GetSnapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema snapshot: %w", err)
	}
	if !snap.HasEntity(root) {
		return nil, fmt.Errorf("entity %s not found: %w", root, apperrors.ErrInvalidReference)
	}

	report := &models.ImpactReport{Root: root, ChangeType: change}

	incoming, err := s.buildIncomingIndex(ctx, projectID, snap, report)
	if err != nil {
		return nil, err
	}

	s.traverse(snap, incoming, root, change, detectionCfg, report)
	s.score(detectionCfg, report)

	s.logger.Info("impact analysis complete",
		zap.String("project_id", projectID.String()),
		zap.String("root", root.String()),
		zap.String("change_type", string(change)),
		zap.Int("affected", len(report.AffectedEntities)),
		zap.Int("risk", report.TotalRiskScore))

	return report, nil
}

// buildIncomingIndex loads all three edge sources and indexes them by
// the referenced entity. Edges pointing at entities missing from the
// snapshot are reported and skipped, never fatal: a stale edge must not
// block an otherwise sound analysis.
func (s *impactService) buildIncomingIndex(
	ctx context.Context,
	projectID uuid.UUID,
	snap *models.SchemaSnapshot,
	report *models.ImpactReport,
) (map[models.EntityRef][]impactEdge, error) {
	incoming := make(map[models.EntityRef][]impactEdge)

	skip := func(kind, detail string) {
		msg := fmt.Sprintf("skipped %s edge: %s", kind, detail)
		report.Warnings = append(report.Warnings, msg)
		s.logger.Warn("skipping broken graph edge",
			zap.String("project_id", projectID.String()),
			zap.String("kind", kind),
			zap.String("detail", detail))
	}

	physical, err := s.physicalRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load physical fks: %w", err)
	}
	for _, fk := range physical {
		src, okSrc := snap.TableByID(fk.SourceTableID)
		tgt, okTgt := snap.TableByID(fk.TargetTableID)
		if !okSrc || !okTgt {
			skip("physical fk", fk.ConstraintName)
			continue
		}
		ref := models.EntityRef{Type: models.EntityTypeTable, ID: tgt.ID}
		incoming[ref] = append(incoming[ref], impactEdge{
			dependent: models.EntityRef{Type: models.EntityTypeTable, ID: src.ID},
			kind:      edgePhysical,
			onDelete:  fk.OnDeleteAction,
			label: fmt.Sprintf("%s references %s via constraint %s (on delete %s)",
				src.Name, tgt.Name, fk.ConstraintName, fk.OnDeleteAction),
		})
	}

	logical, err := s.logicalRepo.ListConfirmedByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed logical fks: %w", err)
	}
	for _, fk := range logical {
		src, okSrc := snap.TableByID(fk.SourceTableID)
		tgt, okTgt := snap.TableByID(fk.TargetTableID)
		if !okSrc || !okTgt {
			skip("logical fk", fk.ID.String())
			continue
		}
		ref := models.EntityRef{Type: models.EntityTypeTable, ID: tgt.ID}
		incoming[ref] = append(incoming[ref], impactEdge{
			dependent:  models.EntityRef{Type: models.EntityTypeTable, ID: src.ID},
			kind:       edgeLogical,
			confidence: fk.ConfidenceScore,
			label: fmt.Sprintf("%s logically references %s (confidence %.2f)",
				src.Name, tgt.Name, fk.ConfidenceScore),
		})
	}

	deps, err := s.dependencyRepo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load dependencies: %w", err)
	}
	for _, dep := range deps {
		if !snap.HasEntity(dep.Source) || !snap.HasEntity(dep.Target) {
			skip("dependency", fmt.Sprintf("%s -> %s", dep.Source, dep.Target))
			continue
		}
		incoming[dep.Target] = append(incoming[dep.Target], impactEdge{
			dependent:  dep.Source,
			kind:       edgeDependency,
			confidence: dep.ConfidenceScore,
			label: fmt.Sprintf("%s %s %s",
				entityName(snap, dep.Source), dependencyVerb(dep.DependencyType), entityName(snap, dep.Target)),
		})
	}

	return incoming, nil
}

// traverse walks incoming edges breadth-first; the visited set keeps
// cycles and diamonds from being reported twice. The first visit wins,
// which under BFS is the shortest path.
func (s *impactService) traverse(
	snap *models.SchemaSnapshot,
	incoming map[models.EntityRef][]impactEdge,
	root models.EntityRef,
	change models.ChangeType,
	cfg config.DetectionConfig,
	report *models.ImpactReport,
) {
	type queueItem struct {
		ref   models.EntityRef
		depth int
	}
	visited := map[models.EntityRef]bool{root: true}
	queue := []queueItem{{ref: root, depth: 0}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= cfg.MaxTraversalDepth {
			continue
		}

		for _, edge := range incoming[item.ref] {
			if visited[edge.dependent] {
				continue
			}
			visited[edge.dependent] = true

			distance := item.depth + 1
			affected := models.AffectedEntity{
				Entity:   edge.dependent,
				Name:     entityName(snap, edge.dependent),
				Distance: distance,
				Reasons:  []string{edge.label},
			}
			affected.Level = classify(snap, edge, distance, change, cfg, &affected)

			report.AffectedEntities = append(report.AffectedEntities, affected)
			queue = append(queue, queueItem{ref: edge.dependent, depth: distance})
		}
	}

	sort.SliceStable(report.AffectedEntities, func(i, j int) bool {
		a, b := report.AffectedEntities[i], report.AffectedEntities[j]
		if a.Level != b.Level {
			return a.Level.MoreSevere(b.Level)
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Name < b.Name
	})
}

// classify assigns the per-entity impact level. Criticality level 5
// always dominates; a cascading delete is as bad as it gets; otherwise
// severity decays with distance.
func classify(
	snap *models.SchemaSnapshot,
	edge impactEdge,
	distance int,
	change models.ChangeType,
	cfg config.DetectionConfig,
	affected *models.AffectedEntity,
) models.ImpactLevel {
	criticality := 0
	if edge.dependent.Type == models.EntityTypeTable || edge.dependent.Type == models.EntityTypeView {
		if t, ok := snap.TableByID(edge.dependent.ID); ok {
			criticality = t.CriticalityLevel
		}
	}

	var level models.ImpactLevel
	switch {
	case criticality == 5:
		level = models.ImpactLevelCritical
		affected.Reasons = append(affected.Reasons, "business-critical entity")
	case change == models.ChangeTypeDelete && edge.kind == edgePhysical && edge.onDelete.Amplifies():
		level = models.ImpactLevelCritical
		affected.Reasons = append(affected.Reasons, fmt.Sprintf("delete propagates via on delete %s", edge.onDelete))
	case (distance == 1 && change == models.ChangeTypeDelete) || criticality == 4:
		level = models.ImpactLevelHigh
	case (distance == 1 && change == models.ChangeTypeModify) || distance == 2:
		level = models.ImpactLevelMedium
	default:
		level = models.ImpactLevelLow
	}

	if edge.kind == edgeLogical && edge.confidence < cfg.LowConfidenceFloor {
		affected.Reasons = append(affected.Reasons,
			fmt.Sprintf("unconfirmed relationship (confidence %.2f), verify before acting", edge.confidence))
		if criticality < 4 {
			level = level.Cap(models.ImpactLevelMedium)
		}
	}

	return level
}

// score totals the weighted affected entities into a capped risk score.
func (s *impactService) score(cfg config.DetectionConfig, report *models.ImpactReport) {
	total := 0
	anyCritical := false
	for _, e := range report.AffectedEntities {
		switch e.Level {
		case models.ImpactLevelCritical:
			total += cfg.RiskWeightCritical
			anyCritical = true
		case models.ImpactLevelHigh:
			total += cfg.RiskWeightHigh
		case models.ImpactLevelMedium:
			total += cfg.RiskWeightMedium
		default:
			total += cfg.RiskWeightLow
		}
	}
	if total > cfg.RiskScoreCap {
		total = cfg.RiskScoreCap
	}
	report.TotalRiskScore = total
	report.RequiresApproval = total > cfg.ApprovalRiskThreshold || anyCritical
}

// entityName renders a human-readable name for a registry reference.
func entityName(snap *models.SchemaSnapshot, ref models.EntityRef) string {
	switch ref.Type {
	case models.EntityTypeTable, models.EntityTypeView:
		if t, ok := snap.TableByID(ref.ID); ok {
			return t.Name
		}
	case models.EntityTypeColumn:
		if t, ok := snap.TableForColumn(ref.ID); ok {
			if c, ok := snap.ColumnByID(ref.ID); ok {
				return t.Name + "." + c.Name
			}
		}
	case models.EntityTypeSP, models.EntityTypeFunction:
		if r, ok := snap.RoutineByID(ref.ID); ok {
			return r.Name
		}
	}
	return ref.String()
}

// dependencyVerb renders a dependency type as prose for edge labels.
func dependencyVerb(t models.DependencyType) string {
	switch t {
	case models.DependencyTypeInsert:
		return "inserts into"
	case models.DependencyTypeUpdate:
		return "updates"
	case models.DependencyTypeExec:
		return "executes"
	case models.DependencyTypeFK:
		return "references"
	default:
		return "reads"
	}
}
