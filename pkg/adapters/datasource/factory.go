package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource/mssql"
	"github.com/relgraph/relgraph-engine/pkg/adapters/datasource/postgres"
	"github.com/relgraph/relgraph-engine/pkg/logging"
)

// Supported database kinds.
const (
	KindPostgres = "postgres"
	KindMSSQL    = "mssql"
)

// New opens a SchemaSource for the given database kind and connection
// string. Connection strings never appear in returned errors.
func New(ctx context.Context, kind, connectionString string, logger *zap.Logger) (SchemaSource, error) {
	switch kind {
	case KindPostgres:
		src, err := postgres.NewSource(ctx, connectionString, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres source (%s): %w",
				logging.SanitizeConnectionString(connectionString), err)
		}
		return src, nil
	case KindMSSQL:
		src, err := mssql.NewSource(ctx, connectionString, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mssql source (%s): %w",
				logging.SanitizeConnectionString(connectionString), err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported datasource kind: %q", kind)
	}
}
