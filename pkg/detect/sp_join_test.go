package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relgraph/relgraph-engine/pkg/models"
)

func snapshotWithRoutine(definition string) *models.SchemaSnapshot {
	snap := storefrontSnapshot()
	snap.Routines = []*models.SnapshotRoutine{
		{ID: 10, Type: models.EntityTypeSP, Name: "sp_customer_orders", Definition: definition},
	}
	return snap
}

func TestSPJoinDetector_AliasedJoin(t *testing.T) {
	snap := snapshotWithRoutine(
		"SELECT o.id, c.name FROM Orders o JOIN Customers c ON o.customer_id = c.id")

	cands, warnings := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	assert.Empty(t, warnings)
	require.Len(t, cands, 1)

	c := cands[0]
	assert.Equal(t, int64(2), c.SourceTableID)
	assert.Equal(t, []int64{202}, c.SourceColumnIDs)
	assert.Equal(t, int64(1), c.TargetTableID)
	assert.Equal(t, []int64{101}, c.TargetColumnIDs)
	assert.Equal(t, models.DiscoveryMethodSPJoin, c.Method)
	assert.InDelta(t, 0.7, c.RawScore, 1e-9)
	assert.Contains(t, c.Reason, "sp_customer_orders joins on")
}

func TestSPJoinDetector_PrimaryKeySideBecomesTarget(t *testing.T) {
	// Textual order puts the PK on the left; direction must still point
	// from the referencing column to the key.
	snap := snapshotWithRoutine(
		"SELECT * FROM Customers c JOIN Orders o ON c.id = o.customer_id")

	cands, _ := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	require.Len(t, cands, 1)
	assert.Equal(t, int64(2), cands[0].SourceTableID)
	assert.Equal(t, int64(1), cands[0].TargetTableID)
}

func TestSPJoinDetector_UnaliasedReferences(t *testing.T) {
	snap := snapshotWithRoutine(
		"SELECT * FROM Orders WHERE Orders.customer_id = Customers.id")
	snap.Tables = append(snap.Tables, &models.SnapshotTable{
		ID:   3,
		Name: "Audit",
		Columns: []*models.SnapshotColumn{
			{ID: 301, Name: "id", DataType: "bigint", IsPrimaryKey: true},
		},
	})

	cands, _ := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	require.Len(t, cands, 1)
	assert.Equal(t, []int64{202}, cands[0].SourceColumnIDs)
}

func TestSPJoinDetector_PhysicallyLinkedPairSkipped(t *testing.T) {
	snap := snapshotWithRoutine(
		"SELECT * FROM Orders o JOIN Customers c ON o.customer_id = c.id")
	physical := []*models.PhysicalForeignKey{
		{
			SourceTableID:   2,
			SourceColumnIDs: []int64{202},
			TargetTableID:   1,
			TargetColumnIDs: []int64{101},
		},
	}

	cands, warnings := NewSPJoinDetector(detectCfg()).Detect(snap, physical)
	assert.Empty(t, cands)
	assert.Empty(t, warnings)
}

func TestSPJoinDetector_UnparseableRoutineWarns(t *testing.T) {
	snap := snapshotWithRoutine("SET NOCOUNT ON")

	cands, warnings := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	assert.Empty(t, cands)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "sp_customer_orders")
	assert.Contains(t, warnings[0], "no table references could be parsed")
}

func TestSPJoinDetector_EmptyDefinitionSkippedSilently(t *testing.T) {
	snap := snapshotWithRoutine("   ")

	cands, warnings := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	assert.Empty(t, cands)
	assert.Empty(t, warnings)
}

func TestSPJoinDetector_UnknownAliasIgnored(t *testing.T) {
	snap := snapshotWithRoutine(
		"SELECT * FROM Orders o WHERE o.customer_id = ghost.id")

	cands, _ := NewSPJoinDetector(detectCfg()).Detect(snap, nil)
	assert.Empty(t, cands)
}
