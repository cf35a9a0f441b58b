package models

import (
	"strings"

	"github.com/google/uuid"
)

// SchemaSnapshot is the read-only view over a project's stored schema
// metadata that detectors and the impact analyzer operate on. It is
// immutable for the duration of a detection run.
type SchemaSnapshot struct {
	ProjectID uuid.UUID
	Tables    []*SnapshotTable
	Routines  []*SnapshotRoutine

	tablesByID    map[int64]*SnapshotTable
	tablesByName  map[string]*SnapshotTable
	columnsByID   map[int64]*SnapshotColumn
	columnOwner   map[int64]*SnapshotTable
	routinesByID  map[int64]*SnapshotRoutine
	indexesprimed bool
}

// SnapshotTable is a table with its columns and assigned criticality
// level (1-5, 5 being business critical).
type SnapshotTable struct {
	ID               int64
	Name             string
	CriticalityLevel int
	Columns          []*SnapshotColumn
}

// SnapshotColumn carries the column metadata detection depends on.
type SnapshotColumn struct {
	ID           int64
	Name         string
	DataType     string
	IsNullable   bool
	IsPrimaryKey bool
}

// SnapshotRoutine is a stored procedure or function with its full
// definition text.
type SnapshotRoutine struct {
	ID         int64
	Type       EntityType // SP or FUNCTION
	Name       string
	Definition string
}

// PrimaryKey returns the table's PK columns in declaration order.
func (t *SnapshotTable) PrimaryKey() []*SnapshotColumn {
	var pk []*SnapshotColumn
	for _, c := range t.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// ColumnByName returns the named column, case-insensitively.
func (t *SnapshotTable) ColumnByName(name string) (*SnapshotColumn, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

func (s *SchemaSnapshot) primeIndexes() {
	if s.indexesprimed {
		return
	}
	s.tablesByID = make(map[int64]*SnapshotTable, len(s.Tables))
	s.tablesByName = make(map[string]*SnapshotTable, len(s.Tables))
	s.columnsByID = make(map[int64]*SnapshotColumn)
	s.columnOwner = make(map[int64]*SnapshotTable)
	s.routinesByID = make(map[int64]*SnapshotRoutine, len(s.Routines))
	for _, t := range s.Tables {
		s.tablesByID[t.ID] = t
		s.tablesByName[strings.ToLower(t.Name)] = t
		for _, c := range t.Columns {
			s.columnsByID[c.ID] = c
			s.columnOwner[c.ID] = t
		}
	}
	for _, r := range s.Routines {
		s.routinesByID[r.ID] = r
	}
	s.indexesprimed = true
}

// TableByID returns the table with the given registry id.
func (s *SchemaSnapshot) TableByID(id int64) (*SnapshotTable, bool) {
	s.primeIndexes()
	t, ok := s.tablesByID[id]
	return t, ok
}

// TableByName returns the table with the given name, case-insensitively.
func (s *SchemaSnapshot) TableByName(name string) (*SnapshotTable, bool) {
	s.primeIndexes()
	t, ok := s.tablesByName[strings.ToLower(name)]
	return t, ok
}

// ColumnByID returns the column with the given registry id.
func (s *SchemaSnapshot) ColumnByID(id int64) (*SnapshotColumn, bool) {
	s.primeIndexes()
	c, ok := s.columnsByID[id]
	return c, ok
}

// TableForColumn returns the table owning the given column id.
func (s *SchemaSnapshot) TableForColumn(id int64) (*SnapshotTable, bool) {
	s.primeIndexes()
	t, ok := s.columnOwner[id]
	return t, ok
}

// RoutineByID returns the routine with the given registry id.
func (s *SchemaSnapshot) RoutineByID(id int64) (*SnapshotRoutine, bool) {
	s.primeIndexes()
	r, ok := s.routinesByID[id]
	return r, ok
}

// HasEntity reports whether the referenced entity exists in the snapshot.
func (s *SchemaSnapshot) HasEntity(ref EntityRef) bool {
	s.primeIndexes()
	switch ref.Type {
	case EntityTypeTable, EntityTypeView:
		_, ok := s.tablesByID[ref.ID]
		return ok
	case EntityTypeColumn:
		_, ok := s.columnsByID[ref.ID]
		return ok
	case EntityTypeSP, EntityTypeFunction:
		_, ok := s.routinesByID[ref.ID]
		return ok
	default:
		return false
	}
}
