package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/models"
)

func newDetectionFixture(t *testing.T, snap *models.SchemaSnapshot, physical []*models.PhysicalForeignKey) (DetectionService, *fakeLogicalRepo, *fakeDependencyRepo) {
	t.Helper()
	logicalRepo := newFakeLogicalRepo()
	depRepo := newFakeDependencyRepo()
	svc := NewDetectionService(
		testConfig(),
		newFakeSchemaRepo(snap),
		logicalRepo,
		&fakePhysicalRepo{fks: physical},
		depRepo,
		zap.NewNop(),
	)
	return svc, logicalRepo, depRepo
}

func TestDetectCandidates_CorroboratesNamingAndJoins(t *testing.T) {
	projectID := uuid.New()
	snap := orderSchema()
	snap.Routines = []*models.SnapshotRoutine{{
		ID: 10, Type: models.EntityTypeSP, Name: "sp_customer_orders",
		Definition: "SELECT o.id FROM Orders o JOIN Customers c ON o.customer_id = c.id",
	}}
	physical := []*models.PhysicalForeignKey{orderItemsConstraint(projectID, models.OnDeleteCascade)}

	svc, logicalRepo, _ := newDetectionFixture(t, snap, physical)

	result, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)

	// OrderItems.order_id -> Orders.id is already a declared constraint,
	// so only the Orders -> Customers pair survives.
	assert.Equal(t, 1, result.NewCandidates)
	assert.Equal(t, 0, result.UpdatedCandidates)

	fks, err := logicalRepo.ListByTable(context.Background(), projectID, 2)
	require.NoError(t, err)
	require.Len(t, fks, 1)

	fk := fks[0]
	assert.Equal(t, int64(2), fk.SourceTableID)
	assert.Equal(t, []int64{202}, fk.SourceColumnIDs)
	assert.Equal(t, int64(1), fk.TargetTableID)
	assert.Equal(t, []int64{101}, fk.TargetColumnIDs)
	assert.Equal(t, models.LogicalFKStatusSuggested, fk.Status)
	assert.Equal(t, models.DiscoveryMethodCorroborated, fk.DiscoveryMethod)
	assert.ElementsMatch(t,
		[]models.DiscoveryMethod{models.DiscoveryMethodNameConvention, models.DiscoveryMethodSPJoin},
		fk.DiscoveryMethods)
	// strongest signal 0.7 plus one corroboration bonus
	assert.InDelta(t, 0.85, fk.ConfidenceScore, 1e-9)
}

func TestDetectCandidates_RerunIsIdempotent(t *testing.T) {
	projectID := uuid.New()
	svc, _, _ := newDetectionFixture(t, orderSchema(), nil)

	first, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)
	require.Positive(t, first.NewCandidates)

	second, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)
	assert.Equal(t, 0, second.NewCandidates)
	assert.Equal(t, first.NewCandidates, second.UpdatedCandidates)
}

func TestDetectCandidates_RejectedStaysRejected(t *testing.T) {
	projectID := uuid.New()
	svc, logicalRepo, _ := newDetectionFixture(t, orderSchema(), nil)

	_, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)

	fks, err := logicalRepo.ListByTable(context.Background(), projectID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, fks)
	rejected := fks[0]
	score := rejected.ConfidenceScore

	stored := logicalRepo.byID[rejected.ID]
	stored.Status = models.LogicalFKStatusRejected

	_, err = svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)

	after, err := logicalRepo.GetByID(context.Background(), rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LogicalFKStatusRejected, after.Status)
	require.NotNil(t, after.RejectedScore)
	assert.InDelta(t, score, *after.RejectedScore, 1e-9)
}

func TestDetectCandidates_RecordsDependencyEdges(t *testing.T) {
	projectID := uuid.New()
	snap := orderSchema()
	snap.Routines = []*models.SnapshotRoutine{{
		ID: 10, Type: models.EntityTypeSP, Name: "sp_archive_orders",
		Definition: "INSERT INTO OrderItems (id) SELECT id FROM Orders; UPDATE Customers SET name = 'x'",
	}}

	svc, _, depRepo := newDetectionFixture(t, snap, nil)

	result, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)
	assert.Positive(t, result.DependencyEdges)

	deps, err := depRepo.ListByProject(context.Background(), projectID)
	require.NoError(t, err)

	byType := make(map[models.DependencyType]int)
	for _, d := range deps {
		assert.Equal(t, models.EntityRef{Type: models.EntityTypeSP, ID: 10}, d.Source)
		byType[d.DependencyType]++
	}
	assert.Equal(t, 1, byType[models.DependencyTypeInsert])
	assert.Equal(t, 1, byType[models.DependencyTypeUpdate])
	assert.Equal(t, 1, byType[models.DependencyTypeSelect])
}

func TestDetectCandidates_MalformedRoutineWarnsAndContinues(t *testing.T) {
	projectID := uuid.New()
	snap := orderSchema()
	snap.Routines = []*models.SnapshotRoutine{{
		ID: 10, Type: models.EntityTypeSP, Name: "sp_noise",
		Definition: "BEGIN SET NOCOUNT ON END",
	}}

	svc, _, _ := newDetectionFixture(t, snap, nil)

	result, err := svc.DetectCandidates(context.Background(), projectID)
	require.NoError(t, err)
	// Naming candidates still land despite the unparseable routine.
	assert.Positive(t, result.NewCandidates)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "sp_noise")
}
