package models

// ForeignKeyInfo is a physical FK constraint as read from a customer
// database, keyed by table and column names. Registry ids are assigned
// when the surrounding snapshot is stored; until then names are the
// only identity a datasource adapter can know.
type ForeignKeyInfo struct {
	ConstraintName string
	SourceTable    string
	SourceColumns  []string
	TargetTable    string
	TargetColumns  []string
	OnDelete       OnDeleteAction
}
