package detect

import (
	"fmt"
	"strings"

	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/models"
	enginesql "github.com/relgraph/relgraph-engine/pkg/sql"
)

// SPJoinDetector proposes logical FKs from join predicates observed in
// stored procedure and function text. A join two queries actually
// perform is a stronger signal than naming alone, so these candidates
// score higher than name-convention ones.
type SPJoinDetector struct {
	cfg config.DetectionConfig
}

// NewSPJoinDetector creates an SP-join detector with the given tuning.
func NewSPJoinDetector(cfg config.DetectionConfig) *SPJoinDetector {
	return &SPJoinDetector{cfg: cfg}
}

// Method returns the provenance tag this detector stamps on candidates.
func (d *SPJoinDetector) Method() models.DiscoveryMethod {
	return models.DiscoveryMethodSPJoin
}

// Detect lexically scans routine definitions for alias.col = alias.col
// comparisons, resolves aliases against the snapshot, and emits
// candidates for pairs not already covered by a physical FK. Routines
// whose text yields nothing parseable are skipped with a warning; a
// malformed procedure never fails the batch.
func (d *SPJoinDetector) Detect(snap *models.SchemaSnapshot, physical []*models.PhysicalForeignKey) ([]models.Candidate, []string) {
	linked := physicalColumnPairs(physical)

	var out []models.Candidate
	var warnings []string
	emitted := make(map[string]bool)

	for _, routine := range snap.Routines {
		if strings.TrimSpace(routine.Definition) == "" {
			continue
		}

		resolvedAny := false
		for _, stmt := range enginesql.SplitStatements(routine.Definition) {
			aliases := enginesql.ResolveAliases(stmt)
			if len(aliases) == 0 {
				continue
			}
			resolvedAny = true

			for _, comp := range enginesql.ExtractJoinComparisons(stmt) {
				cand, ok := d.resolveComparison(snap, aliases, comp, linked)
				if !ok {
					continue
				}
				cand.Reason = fmt.Sprintf("%s joins on %s", routine.Name, comp.Fragment)
				if !emitted[cand.Key()] {
					emitted[cand.Key()] = true
					out = append(out, cand)
				}
			}
		}

		if !resolvedAny {
			warnings = append(warnings, fmt.Sprintf("skipped %s: no table references could be parsed", routine.Name))
		}
	}

	return out, warnings
}

// resolveComparison maps one alias.col = alias.col predicate to a
// candidate. Direction: the side holding the primary key is the
// target, since joins walk from referencing rows to referenced keys.
// When neither or both sides are keys the textual order stands.
func (d *SPJoinDetector) resolveComparison(
	snap *models.SchemaSnapshot,
	aliases map[string]string,
	comp enginesql.JoinComparison,
	linked map[[2]int64]bool,
) (models.Candidate, bool) {
	leftTable, leftCol, ok := resolveSide(snap, aliases, comp.LeftAlias, comp.LeftColumn)
	if !ok {
		return models.Candidate{}, false
	}
	rightTable, rightCol, ok := resolveSide(snap, aliases, comp.RightAlias, comp.RightColumn)
	if !ok {
		return models.Candidate{}, false
	}
	if leftCol.ID == rightCol.ID {
		return models.Candidate{}, false
	}
	if !TypeCompatible(leftCol.DataType, rightCol.DataType) {
		return models.Candidate{}, false
	}

	srcTable, srcCol := leftTable, leftCol
	tgtTable, tgtCol := rightTable, rightCol
	if leftCol.IsPrimaryKey && !rightCol.IsPrimaryKey {
		srcTable, srcCol = rightTable, rightCol
		tgtTable, tgtCol = leftTable, leftCol
	}

	if linked[[2]int64{srcCol.ID, tgtCol.ID}] || linked[[2]int64{tgtCol.ID, srcCol.ID}] {
		return models.Candidate{}, false
	}

	return models.Candidate{
		SourceTableID:   srcTable.ID,
		SourceColumnIDs: []int64{srcCol.ID},
		TargetTableID:   tgtTable.ID,
		TargetColumnIDs: []int64{tgtCol.ID},
		Method:          models.DiscoveryMethodSPJoin,
		RawScore:        d.cfg.SPJoinScore,
	}, true
}

// resolveSide maps an alias-qualified column reference to snapshot
// metadata. The alias map falls back to bare table names so that
// unaliased "Orders.CustomerId" references still resolve.
func resolveSide(snap *models.SchemaSnapshot, aliases map[string]string, alias, column string) (*models.SnapshotTable, *models.SnapshotColumn, bool) {
	tableName, ok := aliases[strings.ToLower(alias)]
	if !ok {
		tableName = alias
	}
	table, ok := snap.TableByName(tableName)
	if !ok {
		return nil, nil, false
	}
	col, ok := table.ColumnByName(column)
	if !ok {
		return nil, nil, false
	}
	return table, col, true
}

// physicalColumnPairs indexes declared FK column pairs so observed
// joins that merely restate the schema are not re-proposed.
func physicalColumnPairs(physical []*models.PhysicalForeignKey) map[[2]int64]bool {
	pairs := make(map[[2]int64]bool)
	for _, fk := range physical {
		for i := range fk.SourceColumnIDs {
			if i < len(fk.TargetColumnIDs) {
				pairs[[2]int64{fk.SourceColumnIDs[i], fk.TargetColumnIDs[i]}] = true
			}
		}
	}
	return pairs
}
