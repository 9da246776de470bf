package postgres

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestPgValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78}

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"nil", nil, nil},
		{"text", "abc", "abc"},
		{"uuid", id, "12345678-1234-5678-1234-567812345678"},
		{"integral numeric", pgtype.Numeric{Int: big.NewInt(42), Exp: 1, Valid: true}, int64(420)},
		{"fractional numeric", pgtype.Numeric{Int: big.NewInt(1250), Exp: -2, Valid: true}, 12.5},
		{"null numeric", pgtype.Numeric{}, nil},
		{"nan numeric", pgtype.Numeric{NaN: true, Valid: true}, "NaN"},
		{"array", []any{id, int32(1)}, []any{"12345678-1234-5678-1234-567812345678", int32(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pgValue(tt.value))
		})
	}
}

func TestPgTypeNameFromOID(t *testing.T) {
	assert.Equal(t, "INT4", pgTypeNameFromOID(23))
	assert.Equal(t, "TEXT", pgTypeNameFromOID(25))
	assert.Equal(t, "UUID", pgTypeNameFromOID(2950))
	assert.Equal(t, "UNKNOWN", pgTypeNameFromOID(999999))
}
