package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/apperrors"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

func newCurationFixture(t *testing.T) (CurationService, *fakeLogicalRepo, uuid.UUID) {
	t.Helper()
	logicalRepo := newFakeLogicalRepo()
	svc := NewCurationService(logicalRepo, newFakeSchemaRepo(orderSchema()), zap.NewNop())
	return svc, logicalRepo, uuid.New()
}

func seedSuggestion(t *testing.T, repo *fakeLogicalRepo, projectID uuid.UUID) uuid.UUID {
	t.Helper()
	id, created, err := repo.Upsert(context.Background(), &models.LogicalForeignKey{
		ProjectID:        projectID,
		SourceTableID:    2,
		SourceColumnIDs:  []int64{202},
		TargetTableID:    1,
		TargetColumnIDs:  []int64{101},
		DiscoveryMethod:  models.DiscoveryMethodNameConvention,
		DiscoveryMethods: []models.DiscoveryMethod{models.DiscoveryMethodNameConvention},
		ConfidenceScore:  0.6,
	})
	require.NoError(t, err)
	require.True(t, created)
	return id
}

func TestConfirm_FromSuggested(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	fk, err := svc.Confirm(context.Background(), id, "dba@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.LogicalFKStatusConfirmed, fk.Status)
	require.NotNil(t, fk.ConfirmedBy)
	assert.Equal(t, "dba@example.com", *fk.ConfirmedBy)
	assert.NotNil(t, fk.ConfirmedAt)
}

func TestConfirm_AlreadyConfirmedIsInvalid(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	_, err := svc.Confirm(context.Background(), id, "first")
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), id, "second")
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestReject_CapturesScoreAndClearsConfirmation(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	_, err := svc.Confirm(context.Background(), id, "dba")
	require.NoError(t, err)

	reason := "column reused for unrelated data"
	fk, err := svc.Reject(context.Background(), id, "dba", &reason)
	require.NoError(t, err)

	assert.Equal(t, models.LogicalFKStatusRejected, fk.Status)
	require.NotNil(t, fk.RejectedScore)
	assert.InDelta(t, 0.6, *fk.RejectedScore, 1e-9)
	assert.Nil(t, fk.ConfirmedBy)
	assert.Nil(t, fk.ConfirmedAt)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.Notes)
	assert.Equal(t, reason, *stored.Notes)
}

func TestConfirm_UndoesRejection(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	_, err := svc.Reject(context.Background(), id, "dba", nil)
	require.NoError(t, err)

	fk, err := svc.Confirm(context.Background(), id, "dba")
	require.NoError(t, err)
	assert.Equal(t, models.LogicalFKStatusConfirmed, fk.Status)
	assert.Nil(t, fk.RejectedScore)
}

func TestReject_AlreadyRejectedIsInvalid(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	_, err := svc.Reject(context.Background(), id, "dba", nil)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), id, "dba", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestTransition_UnknownID(t *testing.T) {
	svc, _, _ := newCurationFixture(t)

	_, err := svc.Confirm(context.Background(), uuid.New(), "dba")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateManual_BornConfirmed(t *testing.T) {
	svc, _, projectID := newCurationFixture(t)

	fk, warnings, err := svc.CreateManual(context.Background(), ManualFKRequest{
		ProjectID:       projectID,
		SourceTableID:   2,
		SourceColumnIDs: []int64{202},
		TargetTableID:   1,
		TargetColumnIDs: []int64{101},
		Actor:           "dba",
	})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, models.LogicalFKStatusConfirmed, fk.Status)
	assert.Equal(t, models.DiscoveryMethodManual, fk.DiscoveryMethod)
	assert.Equal(t, 1.0, fk.ConfidenceScore)
	require.NotNil(t, fk.ConfirmedBy)
	assert.Equal(t, "dba", *fk.ConfirmedBy)
}

func TestCreateManual_AdvisoryWarnings(t *testing.T) {
	svc, _, projectID := newCurationFixture(t)

	// Customers.name (text) against Customers.id (bigint): wrong types
	// and self-referential, but both are warnings only.
	fk, warnings, err := svc.CreateManual(context.Background(), ManualFKRequest{
		ProjectID:       projectID,
		SourceTableID:   1,
		SourceColumnIDs: []int64{102},
		TargetTableID:   1,
		TargetColumnIDs: []int64{101},
		Actor:           "dba",
	})
	require.NoError(t, err)
	require.NotNil(t, fk)
	assert.Len(t, warnings, 2)
}

func TestCreateManual_InvalidReferences(t *testing.T) {
	svc, _, projectID := newCurationFixture(t)

	tests := []struct {
		name string
		req  ManualFKRequest
	}{
		{
			name: "unknown source table",
			req: ManualFKRequest{
				ProjectID: projectID, SourceTableID: 99,
				SourceColumnIDs: []int64{202}, TargetTableID: 1, TargetColumnIDs: []int64{101},
			},
		},
		{
			name: "column from another table",
			req: ManualFKRequest{
				ProjectID: projectID, SourceTableID: 2,
				SourceColumnIDs: []int64{302}, TargetTableID: 1, TargetColumnIDs: []int64{101},
			},
		},
		{
			name: "mismatched column lists",
			req: ManualFKRequest{
				ProjectID: projectID, SourceTableID: 2,
				SourceColumnIDs: []int64{201, 202}, TargetTableID: 1, TargetColumnIDs: []int64{101},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Actor = "dba"
			_, _, err := svc.CreateManual(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrInvalidReference)
		})
	}
}

func TestCreateManual_DuplicateConflicts(t *testing.T) {
	svc, _, projectID := newCurationFixture(t)

	req := ManualFKRequest{
		ProjectID: projectID, SourceTableID: 2,
		SourceColumnIDs: []int64{202}, TargetTableID: 1, TargetColumnIDs: []int64{101},
		Actor: "dba",
	}
	_, _, err := svc.CreateManual(context.Background(), req)
	require.NoError(t, err)

	_, _, err = svc.CreateManual(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestDelete_AnyState(t *testing.T) {
	svc, repo, projectID := newCurationFixture(t)
	id := seedSuggestion(t, repo, projectID)

	_, err := svc.Reject(context.Background(), id, "dba", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), id))

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(context.Background(), id), apperrors.ErrNotFound)
}
