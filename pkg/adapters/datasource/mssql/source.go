// Package mssql introspects SQL Server schemas.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/relgraph/relgraph-engine/pkg/models"
)

// Source reads schema metadata from a SQL Server database.
type Source struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSource connects to the database and verifies the connection.
func NewSource(ctx context.Context, connectionString string, logger *zap.Logger) (*Source, error) {
	db, err := sql.Open("sqlserver", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Source{db: db, logger: logger.Named("datasource.mssql")}, nil
}

// Kind returns "mssql".
func (s *Source) Kind() string { return "mssql" }

// Close releases the connection.
func (s *Source) Close() error {
	return s.db.Close()
}

// Snapshot introspects tables, columns, routines and FK constraints.
func (s *Source) Snapshot(ctx context.Context) (*models.SchemaSnapshot, []models.ForeignKeyInfo, error) {
	snap := &models.SchemaSnapshot{}

	if err := s.readTablesAndColumns(ctx, snap); err != nil {
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

func (s *Source) readTablesAndColumns(ctx context.Context, snap *models.SchemaSnapshot) error {
	query := `
		SELECT t.name, c.name, ty.name, c.is_nullable,
		       CASE WHEN ic.column_id IS NOT NULL THEN 1 ELSE 0 END
		FROM sys.tables t
		JOIN sys.columns c ON c.object_id = t.object_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.indexes i
			ON i.object_id = t.object_id AND i.is_primary_key = 1
		LEFT JOIN sys.index_columns ic
			ON ic.object_id = t.object_id AND ic.index_id = i.index_id AND ic.column_id = c.column_id
		ORDER BY t.name, c.column_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query tables and columns: %w", err)
	}
	defer rows.Close()

	var current *models.SnapshotTable
	for rows.Next() {
		var (
			tableName string
			col       models.SnapshotColumn
			isPK      int
		)
		if err := rows.Scan(&tableName, &col.Name, &col.DataType, &col.IsNullable, &isPK); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		col.IsPrimaryKey = isPK == 1
		if current == nil || current.Name != tableName {
			snap.Tables = append(snap.Tables, &models.SnapshotTable{Name: tableName})
			current = snap.Tables[len(snap.Tables)-1]
		}
		current.Columns = append(current.Columns, &col)
	}
	return rows.Err()
}

func (s *Source) readRoutines(ctx context.Context) ([]*models.SnapshotRoutine, error) {
	query := `
		SELECT o.name, o.type, m.definition
		FROM sys.sql_modules m
		JOIN sys.objects o ON o.object_id = m.object_id
		WHERE o.type IN ('P', 'FN', 'IF', 'TF')
		ORDER BY o.name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query routines: %w", err)
	}
	defer rows.Close()

	var routines []*models.SnapshotRoutine
	for rows.Next() {
		var (
			rt         models.SnapshotRoutine
			objectType string
			definition sql.NullString
		)
		if err := rows.Scan(&rt.Name, &objectType, &definition); err != nil {
			return nil, fmt.Errorf("failed to scan routine: %w", err)
		}
		if strings.TrimSpace(objectType) == "P" {
			rt.Type = models.EntityTypeSP
		} else {
			rt.Type = models.EntityTypeFunction
		}
		rt.Definition = definition.String
		routines = append(routines, &rt)
	}
	return routines, rows.Err()
}

func (s *Source) readForeignKeys(ctx context.Context) ([]models.ForeignKeyInfo, error) {
	query := `
		SELECT fk.name, sp.name, rp.name, fk.delete_referential_action_desc,
		       sc.name, rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables sp ON sp.object_id = fk.parent_object_id
		JOIN sys.tables rp ON rp.object_id = fk.referenced_object_id
		JOIN sys.columns sc
			ON sc.object_id = fkc.parent_object_id AND sc.column_id = fkc.parent_column_id
		JOIN sys.columns rc
			ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		ORDER BY fk.name, fkc.constraint_column_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query foreign keys: %w", err)
	}
	defer rows.Close()

	var (
		fks     []models.ForeignKeyInfo
		current *models.ForeignKeyInfo
	)
	for rows.Next() {
		var name, srcTable, tgtTable, action, srcCol, tgtCol string
		if err := rows.Scan(&name, &srcTable, &tgtTable, &action, &srcCol, &tgtCol); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if current == nil || current.ConstraintName != name {
			fks = append(fks, models.ForeignKeyInfo{
				ConstraintName: name,
				SourceTable:    srcTable,
				TargetTable:    tgtTable,
				// sys reports NO_ACTION, SET_NULL etc.
				OnDelete: models.OnDeleteAction(strings.ReplaceAll(action, "_", " ")),
			})
			current = &fks[len(fks)-1]
		}
		current.SourceColumns = append(current.SourceColumns, srcCol)
		current.TargetColumns = append(current.TargetColumns, tgtCol)
	}
	return fks, rows.Err()
}
