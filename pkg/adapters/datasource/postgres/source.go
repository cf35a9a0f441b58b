// Package postgres introspects PostgreSQL schemas.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/models"
)

// Source reads schema metadata from a PostgreSQL database. Only the
// public schema is scanned.
type Source struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewSource connects to the database and verifies the connection.
func NewSource(ctx context.Context, connectionString string, logger *zap.Logger) (*Source, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Source{pool: pool, logger: logger.Named("datasource.postgres")}, nil
}

// Kind returns "postgres".
func (s *Source) Kind() string { return "postgres" }

// Close releases the connection pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

// Snapshot introspects tables, columns, routines and FK constraints.
func (s *Source) Snapshot(ctx context.Context) (*models.SchemaSnapshot, []models.ForeignKeyInfo, error) {
	snap := &models.SchemaSnapshot{}

	tables, err := s.readTables(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap.Tables = tables

	if err := s.readColumns(ctx, snap); err != nil {
		return nil, nil, err
	}

	routines, err := s.readRoutines(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap.Routines = routines

	fks, err := s.readForeignKeys(ctx)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("introspected schema",
		zap.Int("tables", len(snap.Tables)),
		zap.Int("routines", len(snap.Routines)),
		zap.Int("foreign_keys", len(fks)))

	return snap, fks, nil
}

func (s *Source) readTables(ctx context.Context) ([]*models.SnapshotTable, error) {
	query := `
		SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = 'public' AND c.relkind IN ('r', 'p')
		ORDER BY c.relname`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.SnapshotTable
	for rows.Next() {
		var t models.SnapshotTable
		if err := rows.Scan(&t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, &t)
	}
	return tables, rows.Err()
}

func (s *Source) readColumns(ctx context.Context, snap *models.SchemaSnapshot) error {
	query := `
		SELECT c.table_name, c.column_name, c.data_type, c.is_nullable = 'YES',
		       COALESCE(pk.is_pk, false)
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.table_name, kcu.column_name, true AS is_pk
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON kcu.constraint_name = tc.constraint_name
				AND kcu.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = 'public'
		) pk ON pk.table_name = c.table_name AND pk.column_name = c.column_name
		WHERE c.table_schema = 'public'
		ORDER BY c.table_name, c.ordinal_position`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]*models.SnapshotTable, len(snap.Tables))
	for _, t := range snap.Tables {
		byName[t.Name] = t
	}

	for rows.Next() {
		var (
			tableName string
			col       models.SnapshotColumn
		)
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &col.IsNullable, &col.IsPrimaryKey); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		if t, ok := byName[tableName]; ok {
			t.Columns = append(t.Columns, &col)
		}
	}
	return rows.Err()
}

func (s *Source) readRoutines(ctx context.Context) ([]*models.SnapshotRoutine, error) {
	query := `
		SELECT p.proname, p.prokind, pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = 'public' AND p.prokind IN ('f', 'p')
		ORDER BY p.proname`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	defer rows.Close()

	var routines []*models.SnapshotRoutine
	for rows.Next() {
		var (
			rt      models.SnapshotRoutine
			prokind string
		)
		if err := rows.Scan(&rt.Name, &prokind, &rt.Definition); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		if prokind == "p" {
			rt.Type = models.EntityTypeSP
		} else {
			rt.Type = models.EntityTypeFunction
		}
		routines = append(routines, &rt)
	}
	return routines, rows.Err()
}

func (s *Source) readForeignKeys(ctx context.Context) ([]models.ForeignKeyInfo, error) {
	// unnest WITH ORDINALITY keeps composite key columns paired and in
	// declaration order.
	query := `
		SELECT con.conname, src.relname, tgt.relname, con.confdeltype,
		       sa.attname, ta.attname
		FROM pg_constraint con
		JOIN pg_class src ON src.oid = con.conrelid
		JOIN pg_class tgt ON tgt.oid = con.confrelid
		JOIN pg_namespace n ON n.oid = con.connamespace
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey)
			WITH ORDINALITY AS cols(src_attnum, tgt_attnum, ord)
		JOIN pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = cols.src_attnum
		JOIN pg_attribute ta ON ta.attrelid = con.confrelid AND ta.attnum = cols.tgt_attnum
		WHERE con.contype = 'f' AND n.nspname = 'public'
		ORDER BY con.conname, cols.ord`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	var (
		fks     []models.ForeignKeyInfo
		current *models.ForeignKeyInfo
	)
	for rows.Next() {
		var (
			name, srcTable, tgtTable, srcCol, tgtCol string
			delType                                  string
		)
		if err := rows.Scan(&name, &srcTable, &tgtTable, &delType, &srcCol, &tgtCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if current == nil || current.ConstraintName != name {
			fks = append(fks, models.ForeignKeyInfo{
				ConstraintName: name,
				SourceTable:    srcTable,
				TargetTable:    tgtTable,
				OnDelete:       deleteAction(delType),
			})
			current = &fks[len(fks)-1]
		}
		current.SourceColumns = append(current.SourceColumns, srcCol)
		current.TargetColumns = append(current.TargetColumns, tgtCol)
	}
	return fks, rows.Err()
}

// deleteAction maps pg_constraint.confdeltype codes.
func deleteAction(code string) models.OnDeleteAction {
	switch code {
	case "c":
		return models.OnDeleteCascade
	case "n":
		return models.OnDeleteSetNull
	case "d":
		return models.OnDeleteSetDefault
	case "r":
		return models.OnDeleteRestrict
	default:
		return models.OnDeleteNoAction
	}
}
