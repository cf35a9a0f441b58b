package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"bigint", "integer", true},
		{"bigint", "bigserial", true},
		{"varchar(50)", "text", true},
		{"nvarchar(100)", "citext", true},
		{"uuid", "uniqueidentifier", true},
		{"int", "numeric(10,0)", true},
		{"timestamp with time zone", "datetime2", true},
		{"bit", "boolean", true},
		{"bytea", "varbinary(max)", true},
		{"bigint", "varchar(20)", false},
		{"uuid", "bigint", false},
		{"text", "timestamp", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TypeCompatible(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
