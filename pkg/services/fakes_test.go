package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/repositories"
)

// In-memory repository fakes mirroring the SQL semantics the real
// repositories implement, so service tests run without a database.

func testDetectionConfig() config.DetectionConfig {
	return config.DetectionConfig{
		NameConventionScore:          0.6,
		NameConventionCompositeScore: 0.5,
		SPJoinScore:                  0.7,
		CorroborationBonus:           0.15,
		LowConfidenceFloor:           0.5,
		MaxTraversalDepth:            3,
		ApprovalRiskThreshold:        70,
		RiskWeightCritical:           25,
		RiskWeightHigh:               10,
		RiskWeightMedium:             4,
		RiskWeightLow:                1,
		RiskScoreCap:                 100,
	}
}

func testConfig() *config.Config {
	return &config.Config{Detection: testDetectionConfig()}
}

type fakeLogicalRepo struct {
	byID map[uuid.UUID]*models.LogicalForeignKey
}

func newFakeLogicalRepo() *fakeLogicalRepo {
	return &fakeLogicalRepo{byID: make(map[uuid.UUID]*models.LogicalForeignKey)}
}

var _ repositories.LogicalFKRepository = (*fakeLogicalRepo)(nil)

func identityKey(fk *models.LogicalForeignKey) string {
	return fmt.Sprintf("%s|%d|%v|%d|%v",
		fk.ProjectID, fk.SourceTableID, fk.SourceColumnIDs, fk.TargetTableID, fk.TargetColumnIDs)
}

func (r *fakeLogicalRepo) findByKey(key string) *models.LogicalForeignKey {
	for _, fk := range r.byID {
		if identityKey(fk) == key {
			return fk
		}
	}
	return nil
}

func (r *fakeLogicalRepo) Upsert(_ context.Context, fk *models.LogicalForeignKey) (uuid.UUID, bool, error) {
	if err := fk.Validate(); err != nil {
		return uuid.Nil, false, err
	}
	now := time.Now()

	existing := r.findByKey(identityKey(fk))
	if existing == nil {
		stored := *fk
		stored.ID = uuid.New()
		stored.Status = models.LogicalFKStatusSuggested
		stored.CreatedAt = now
		stored.LastSeenAt = now
		r.byID[stored.ID] = &stored
		return stored.ID, true, nil
	}

	switch {
	case existing.Status == models.LogicalFKStatusRejected:
		score := fk.ConfidenceScore
		existing.RejectedScore = &score
	case existing.IsManual():
		// provenance and score untouched
	default:
		existing.ConfidenceScore = fk.ConfidenceScore
		existing.DiscoveryMethod = fk.DiscoveryMethod
	}
	existing.DiscoveryMethods = unionMethods(existing.DiscoveryMethods, fk.DiscoveryMethods)
	existing.LastSeenAt = now
	return existing.ID, false, nil
}

func unionMethods(a, b []models.DiscoveryMethod) []models.DiscoveryMethod {
	seen := make(map[models.DiscoveryMethod]bool)
	var out []models.DiscoveryMethod
	for _, m := range append(append([]models.DiscoveryMethod{}, a...), b...) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *fakeLogicalRepo) CreateManual(_ context.Context, fk *models.LogicalForeignKey) error {
	if r.findByKey(identityKey(fk)) != nil {
		return fmt.Errorf("logical fk already exists: %w", apperrors.ErrConflict)
	}
	if fk.ID == uuid.Nil {
		fk.ID = uuid.New()
	}
	stored := *fk
	r.byID[stored.ID] = &stored
	return nil
}

func (r *fakeLogicalRepo) GetByID(_ context.Context, id uuid.UUID) (*models.LogicalForeignKey, error) {
	fk, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *fk
	return &cp, nil
}

func (r *fakeLogicalRepo) ListByTable(_ context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error) {
	var out []*models.LogicalForeignKey
	for _, fk := range r.byID {
		if fk.ProjectID == projectID && (fk.SourceTableID == tableID || fk.TargetTableID == tableID) {
			cp := *fk
			out = append(out, &cp)
		}
	}
	statusRank := map[models.LogicalFKStatus]int{
		models.LogicalFKStatusSuggested: 0,
		models.LogicalFKStatusConfirmed: 1,
		models.LogicalFKStatusRejected:  2,
	}
	sort.Slice(out, func(i, j int) bool {
		if statusRank[out[i].Status] != statusRank[out[j].Status] {
			return statusRank[out[i].Status] < statusRank[out[j].Status]
		}
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out, nil
}

func (r *fakeLogicalRepo) ListConfirmedByProject(_ context.Context, projectID uuid.UUID) ([]*models.LogicalForeignKey, error) {
	var out []*models.LogicalForeignKey
	for _, fk := range r.byID {
		if fk.ProjectID == projectID && fk.Status == models.LogicalFKStatusConfirmed {
			cp := *fk
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceTableID < out[j].SourceTableID })
	return out, nil
}

func (r *fakeLogicalRepo) SetStatus(_ context.Context, id uuid.UUID, expected models.LogicalFKStatus, fk *models.LogicalForeignKey) (bool, error) {
	stored, ok := r.byID[id]
	if !ok || stored.Status != expected {
		return false, nil
	}
	stored.Status = fk.Status
	stored.RejectedScore = fk.RejectedScore
	stored.ConfirmedBy = fk.ConfirmedBy
	stored.ConfirmedAt = fk.ConfirmedAt
	if fk.Notes != nil {
		stored.Notes = fk.Notes
	}
	return true, nil
}

func (r *fakeLogicalRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.byID[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type fakeSchemaRepo struct {
	snap   *models.SchemaSnapshot
	nextID int64
}

func newFakeSchemaRepo(snap *models.SchemaSnapshot) *fakeSchemaRepo {
	return &fakeSchemaRepo{snap: snap, nextID: 1000}
}

var _ repositories.SchemaRepository = (*fakeSchemaRepo)(nil)

func (r *fakeSchemaRepo) GetSnapshot(_ context.Context, _ uuid.UUID) (*models.SchemaSnapshot, error) {
	return r.snap, nil
}

func (r *fakeSchemaRepo) ReplaceSnapshot(_ context.Context, projectID uuid.UUID, snap *models.SchemaSnapshot) error {
	snap.ProjectID = projectID
	for _, t := range snap.Tables {
		if t.ID == 0 {
			r.nextID++
			t.ID = r.nextID
		}
		for _, c := range t.Columns {
			if c.ID == 0 {
				r.nextID++
				c.ID = r.nextID
			}
		}
	}
	for _, rt := range snap.Routines {
		if rt.ID == 0 {
			r.nextID++
			rt.ID = r.nextID
		}
	}
	r.snap = snap
	return nil
}

func (r *fakeSchemaRepo) SetTableCriticality(_ context.Context, _ uuid.UUID, tableID int64, level int) error {
	if t, ok := r.snap.TableByID(tableID); ok {
		t.CriticalityLevel = level
		return nil
	}
	return apperrors.ErrNotFound
}

type fakePhysicalRepo struct {
	fks []*models.PhysicalForeignKey
}

var _ repositories.PhysicalFKRepository = (*fakePhysicalRepo)(nil)

func (r *fakePhysicalRepo) ListByProject(_ context.Context, _ uuid.UUID) ([]*models.PhysicalForeignKey, error) {
	return r.fks, nil
}

func (r *fakePhysicalRepo) ReplaceForProject(_ context.Context, projectID uuid.UUID, fks []*models.PhysicalForeignKey) error {
	for _, fk := range fks {
		fk.ProjectID = projectID
		if fk.ID == uuid.Nil {
			fk.ID = uuid.New()
		}
	}
	r.fks = fks
	return nil
}

type fakeDependencyRepo struct {
	deps map[string]*models.Dependency
}

func newFakeDependencyRepo() *fakeDependencyRepo {
	return &fakeDependencyRepo{deps: make(map[string]*models.Dependency)}
}

var _ repositories.DependencyRepository = (*fakeDependencyRepo)(nil)

func (r *fakeDependencyRepo) Upsert(_ context.Context, dep *models.Dependency) (uuid.UUID, error) {
	key := fmt.Sprintf("%s|%s|%s|%s", dep.ProjectID, dep.Source, dep.Target, dep.DependencyType)
	if existing, ok := r.deps[key]; ok {
		existing.ConfidenceScore = dep.ConfidenceScore
		existing.DiscoveredAt = time.Now()
		return existing.ID, nil
	}
	stored := *dep
	stored.ID = uuid.New()
	stored.DiscoveredAt = time.Now()
	r.deps[key] = &stored
	return stored.ID, nil
}

func (r *fakeDependencyRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.Dependency, error) {
	var out []*models.Dependency
	for _, d := range r.deps {
		if d.ProjectID == projectID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source.String() < out[j].Source.String() })
	return out, nil
}

func (r *fakeDependencyRepo) DeleteByProject(_ context.Context, projectID uuid.UUID) error {
	for k, d := range r.deps {
		if d.ProjectID == projectID {
			delete(r.deps, k)
		}
	}
	return nil
}

// orderSchema builds the snapshot most tests share: Customers,
// Orders referencing them by naming convention, and OrderItems wired
// to Orders by a declared constraint.
func orderSchema() *models.SchemaSnapshot {
	return &models.SchemaSnapshot{
		Tables: []*models.SnapshotTable{
			{
				ID: 1, Name: "Customers",
				Columns: []*models.SnapshotColumn{
					{ID: 101, Name: "id", DataType: "bigint", IsPrimaryKey: true},
					{ID: 102, Name: "name", DataType: "text"},
				},
			},
			{
				ID: 2, Name: "Orders",
				Columns: []*models.SnapshotColumn{
					{ID: 201, Name: "id", DataType: "bigint", IsPrimaryKey: true},
					{ID: 202, Name: "customer_id", DataType: "bigint"},
				},
			},
			{
				ID: 3, Name: "OrderItems",
				Columns: []*models.SnapshotColumn{
					{ID: 301, Name: "id", DataType: "bigint", IsPrimaryKey: true},
					{ID: 302, Name: "order_id", DataType: "bigint"},
				},
			},
		},
	}
}

// orderItemsConstraint declares OrderItems.order_id -> Orders.id so the
// name-convention hit on that pair is corroborated by schema truth in
// impact tests.
func orderItemsConstraint(projectID uuid.UUID, onDelete models.OnDeleteAction) *models.PhysicalForeignKey {
	return &models.PhysicalForeignKey{
		ID:              uuid.New(),
		ProjectID:       projectID,
		ConstraintName:  "fk_order_items_orders",
		SourceTableID:   3,
		SourceColumnIDs: []int64{302},
		TargetTableID:   2,
		TargetColumnIDs: []int64{201},
		OnDeleteAction:  onDelete,
	}
}
