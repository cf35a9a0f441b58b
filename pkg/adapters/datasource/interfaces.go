// Package datasource connects to customer databases and introspects
// their schemas into snapshots the engine can store and analyze.
package datasource

import (
	"context"

	"github.com/relgraph/relgraph-engine/pkg/models"
)

// SchemaSource introspects one customer database. Implementations hold
// an open connection; callers own the Close.
type SchemaSource interface {
	// Snapshot reads tables, columns, routines and FK constraints.
	// The returned snapshot is name-keyed; registry ids are zero until
	// the schema repository stores it.
	Snapshot(ctx context.Context) (*models.SchemaSnapshot, []models.ForeignKeyInfo, error)

	// Kind returns the database kind this source talks to.
	Kind() string

	Close() error
}
