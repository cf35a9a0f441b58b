package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/relgraph/relgraph-engine/pkg/config"
	"github.com/relgraph/relgraph-engine/pkg/models"
)

// idSuffixPattern captures the table-name stem from columns named like
// CustomerId, customer_id, Customer_ID or CUSTOMERID.
var idSuffixPattern = regexp.MustCompile(`(?i)^(.+?)_?id$`)

// NameConventionDetector proposes logical FKs from column naming:
// a column whose name is another table's name (singular or plural)
// plus an id suffix, with a data type compatible with that table's
// primary key.
type NameConventionDetector struct {
	cfg config.DetectionConfig
}

// NewNameConventionDetector creates a name-convention detector with
// the given tuning.
func NewNameConventionDetector(cfg config.DetectionConfig) *NameConventionDetector {
	return &NameConventionDetector{cfg: cfg}
}

// Method returns the provenance tag this detector stamps on candidates.
func (d *NameConventionDetector) Method() models.DiscoveryMethod {
	return models.DiscoveryMethodNameConvention
}

// Detect scans the snapshot and returns candidates plus warnings.
// It is a pure function of the snapshot; safe to run concurrently with
// other detectors.
func (d *NameConventionDetector) Detect(snap *models.SchemaSnapshot, _ []*models.PhysicalForeignKey) ([]models.Candidate, []string) {
	var out []models.Candidate
	emitted := make(map[string]bool)
	emit := func(c models.Candidate) {
		if !emitted[c.Key()] {
			emitted[c.Key()] = true
			out = append(out, c)
		}
	}

	for _, src := range snap.Tables {
		for _, col := range src.Columns {
			stem, ok := idStem(col.Name)
			if !ok {
				continue
			}

			for _, target := range resolveTargets(snap, stem) {
				pk := target.PrimaryKey()
				if len(pk) != 1 {
					// Composite PKs are handled by the composite pass below.
					continue
				}
				// A table's own PK trivially matches its own name; that
				// is identity, not a relationship.
				if target.ID == src.ID && col.ID == pk[0].ID {
					continue
				}
				if !TypeCompatible(col.DataType, pk[0].DataType) {
					continue
				}
				emit(models.Candidate{
					SourceTableID:   src.ID,
					SourceColumnIDs: []int64{col.ID},
					TargetTableID:   target.ID,
					TargetColumnIDs: []int64{pk[0].ID},
					Method:          models.DiscoveryMethodNameConvention,
					RawScore:        d.cfg.NameConventionScore,
					Reason:          fmt.Sprintf("column %s.%s names table %s and matches its primary key type", src.Name, col.Name, target.Name),
				})
			}
		}
	}

	// Composite pass: a source table carrying columns named after every
	// part of another table's composite PK.
	for _, target := range snap.Tables {
		pk := target.PrimaryKey()
		if len(pk) < 2 {
			continue
		}
		for _, src := range snap.Tables {
			if src.ID == target.ID {
				continue
			}
			cand, ok := d.matchComposite(src, target, pk)
			if ok {
				emit(cand)
			}
		}
	}

	return out, nil
}

// matchComposite checks whether src carries a type-compatible column for
// every part of target's composite PK.
func (d *NameConventionDetector) matchComposite(src, target *models.SnapshotTable, pk []*models.SnapshotColumn) (models.Candidate, bool) {
	sourceIDs := make([]int64, 0, len(pk))
	targetIDs := make([]int64, 0, len(pk))
	for _, pkCol := range pk {
		c, ok := src.ColumnByName(pkCol.Name)
		if !ok || !TypeCompatible(c.DataType, pkCol.DataType) {
			return models.Candidate{}, false
		}
		sourceIDs = append(sourceIDs, c.ID)
		targetIDs = append(targetIDs, pkCol.ID)
	}
	return models.Candidate{
		SourceTableID:   src.ID,
		SourceColumnIDs: sourceIDs,
		TargetTableID:   target.ID,
		TargetColumnIDs: targetIDs,
		Method:          models.DiscoveryMethodNameConvention,
		// Composite matches are weighted down for combinatorial ambiguity.
		RawScore: d.cfg.NameConventionCompositeScore,
		Reason:   fmt.Sprintf("table %s carries all %d columns of %s's composite primary key", src.Name, len(pk), target.Name),
	}, true
}

// idStem strips the id suffix from a column name, returning the
// table-name stem. Columns named just "id" have no stem.
func idStem(columnName string) (string, bool) {
	m := idSuffixPattern.FindStringSubmatch(columnName)
	if m == nil {
		return "", false
	}
	stem := m[1]
	if stem == "" || strings.EqualFold(stem, "id") {
		return "", false
	}
	return stem, true
}

// resolveTargets finds tables whose name matches the stem. Exact
// case-insensitive singular/plural matches are preferred; only when
// none exist does the underscore-stripped fuzzy tier apply. Ambiguity
// within a tier returns all matches so curation can pick.
func resolveTargets(snap *models.SchemaSnapshot, stem string) []*models.SnapshotTable {
	var exact, fuzzy []*models.SnapshotTable
	stemSingular := inflection.Singular(stem)
	stemPlural := inflection.Plural(stem)
	normStem := normalizeName(stem)
	normSingular := normalizeName(stemSingular)

	for _, t := range snap.Tables {
		switch {
		case strings.EqualFold(t.Name, stem),
			strings.EqualFold(t.Name, stemSingular),
			strings.EqualFold(t.Name, stemPlural):
			exact = append(exact, t)
		case normalizeName(t.Name) == normStem,
			normalizeName(t.Name) == normSingular,
			normalizeName(inflection.Singular(t.Name)) == normSingular:
			fuzzy = append(fuzzy, t)
		}
	}

	if len(exact) > 0 {
		return exact
	}
	return fuzzy
}

// normalizeName lowercases and strips underscores for fuzzy matching.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}
