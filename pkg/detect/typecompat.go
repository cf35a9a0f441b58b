package detect

import "strings"

// typeFamily buckets database types for compatibility checks. The
// check is advisory for manual edges and a hard filter for detectors;
// a join between an int and a varchar is almost never a real FK.
func typeFamily(dataType string) string {
	t := strings.ToLower(strings.TrimSpace(dataType))
	// Strip length/precision qualifiers: varchar(50), numeric(10,2).
	if i := strings.Index(t, "("); i > 0 {
		t = t[:i]
	}

	switch {
	case t == "uuid" || t == "uniqueidentifier":
		return "uuid"
	case strings.Contains(t, "int") || t == "serial" || t == "bigserial" || t == "smallserial":
		return "integer"
	case t == "numeric" || t == "decimal" || t == "money" || t == "smallmoney":
		return "decimal"
	case strings.Contains(t, "float") || strings.Contains(t, "double") || t == "real":
		return "float"
	case strings.Contains(t, "char") || t == "text" || t == "ntext" || t == "citext":
		return "text"
	case strings.Contains(t, "timestamp") || strings.Contains(t, "datetime") || t == "date" || t == "time" || t == "timetz":
		return "temporal"
	case t == "boolean" || t == "bool" || t == "bit":
		return "boolean"
	case t == "bytea" || strings.Contains(t, "binary") || t == "image":
		return "binary"
	default:
		return t
	}
}

// TypeCompatible reports whether two declared column types could hold
// the same key values.
func TypeCompatible(a, b string) bool {
	fa, fb := typeFamily(a), typeFamily(b)
	if fa == fb {
		return true
	}
	// Integer keys are routinely stored in wider decimal columns.
	if (fa == "integer" && fb == "decimal") || (fa == "decimal" && fb == "integer") {
		return true
	}
	return false
}
