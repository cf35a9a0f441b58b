package models

import "fmt"

// EntityType identifies the kind of schema entity a reference points at.
type EntityType string

const (
	EntityTypeTable    EntityType = "TABLE"
	EntityTypeColumn   EntityType = "COLUMN"
	EntityTypeSP       EntityType = "SP"
	EntityTypeFunction EntityType = "FUNCTION"
	EntityTypeView     EntityType = "VIEW"
)

// ValidEntityTypes contains all valid entity type values.
var ValidEntityTypes = []EntityType{
	EntityTypeTable,
	EntityTypeColumn,
	EntityTypeSP,
	EntityTypeFunction,
	EntityTypeView,
}

// IsValidEntityType checks if the given type is valid.
func IsValidEntityType(t EntityType) bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// EntityRef is an opaque reference to a schema entity owned by the
// entity registry. The engine never dereferences it except through
// the registry's snapshot.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   int64      `json:"entity_id"`
}

func (r EntityRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}
