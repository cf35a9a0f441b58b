package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource"
	"github.com/relgraph/relgraph-engine/pkg/models"
	"github.com/relgraph/relgraph-engine/pkg/services"
)

type mockDetectionService struct {
	detectFn func(ctx context.Context, projectID uuid.UUID) (*services.DetectionResult, error)
}

func (m *mockDetectionService) DetectCandidates(ctx context.Context, projectID uuid.UUID) (*services.DetectionResult, error) {
	return m.detectFn(ctx, projectID)
}

type mockCurationService struct {
	confirmFn      func(ctx context.Context, id uuid.UUID, actor string) (*models.LogicalForeignKey, error)
	rejectFn       func(ctx context.Context, id uuid.UUID, actor string, reason *string) (*models.LogicalForeignKey, error)
	createManualFn func(ctx context.Context, req services.ManualFKRequest) (*models.LogicalForeignKey, []string, error)
	deleteFn       func(ctx context.Context, id uuid.UUID) error
	listFn         func(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error)
}

func (m *mockCurationService) Confirm(ctx context.Context, id uuid.UUID, actor string) (*models.LogicalForeignKey, error) {
	return m.confirmFn(ctx, id, actor)
}

func (m *mockCurationService) Reject(ctx context.Context, id uuid.UUID, actor string, reason *string) (*models.LogicalForeignKey, error) {
	return m.rejectFn(ctx, id, actor, reason)
}

func (m *mockCurationService) CreateManual(ctx context.Context, req services.ManualFKRequest) (*models.LogicalForeignKey, []string, error) {
	return m.createManualFn(ctx, req)
}

func (m *mockCurationService) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockCurationService) ListByTable(ctx context.Context, projectID uuid.UUID, tableID int64) ([]*models.LogicalForeignKey, error) {
	return m.listFn(ctx, projectID, tableID)
}

type mockSchemaSyncService struct {
	syncFn func(ctx context.Context, projectID uuid.UUID, source datasource.SchemaSource) (*services.SyncResult, error)
}

func (m *mockSchemaSyncService) Sync(ctx context.Context, projectID uuid.UUID, source datasource.SchemaSource) (*services.SyncResult, error) {
	return m.syncFn(ctx, projectID, source)
}

type mockSchemaRepo struct {
	getSnapshotFn     func(ctx context.Context, projectID uuid.UUID) (*models.SchemaSnapshot, error)
	replaceSnapshotFn func(ctx context.Context, projectID uuid.UUID, snap *models.SchemaSnapshot) error
	setCriticalityFn  func(ctx context.Context, projectID uuid.UUID, tableID int64, level int) error
}

func (m *mockSchemaRepo) GetSnapshot(ctx context.Context, projectID uuid.UUID) (*models.SchemaSnapshot, error) {
	return m.getSnapshotFn(ctx, projectID)
}

func (m *mockSchemaRepo) ReplaceSnapshot(ctx context.Context, projectID uuid.UUID, snap *models.SchemaSnapshot) error {
	return m.replaceSnapshotFn(ctx, projectID, snap)
}

func (m *mockSchemaRepo) SetTableCriticality(ctx context.Context, projectID uuid.UUID, tableID int64, level int) error {
	return m.setCriticalityFn(ctx, projectID, tableID, level)
}

type stubSchemaSource struct {
	kind   string
	closed bool
}

func (s *stubSchemaSource) Snapshot(ctx context.Context) (*models.SchemaSnapshot, []models.ForeignKeyInfo, error) {
	return &models.SchemaSnapshot{}, nil, nil
}

func (s *stubSchemaSource) Kind() string { return s.kind }

func (s *stubSchemaSource) Close() error {
	s.closed = true
	return nil
}

type mockImpactService struct {
	analyzeFn func(ctx context.Context, projectID uuid.UUID, root models.EntityRef, change models.ChangeType) (*models.ImpactReport, error)
}

func (m *mockImpactService) Analyze(ctx context.Context, projectID uuid.UUID, root models.EntityRef, change models.ChangeType) (*models.ImpactReport, error) {
	return m.analyzeFn(ctx, projectID, root, change)
}
