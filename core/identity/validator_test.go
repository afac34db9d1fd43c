package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"seventeen digits", "76561198000000000", true},
		{"sixteen digits", "7656119800000000", false},
		{"max uint64", "18446744073709551615", true},
		{"overflow", "18446744073709551616", false},
		{"surrounding whitespace", "  76561198000000000\n", true},
		{"empty", "", false},
		{"letters", "abc", false},
		{"negative", "-76561198000000000", false},
		{"leading zeros count by value", "00000000000000001", false},
		{"zero", "0", false},
		{"embedded space", "7656119800 0000000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.token))
		})
	}
}

func TestNew(t *testing.T) {
	short := New(3)
	assert.True(t, short("100"))
	assert.False(t, short("99"))

	fallback := New(0)
	assert.False(t, fallback("12345"))
	assert.True(t, fallback("12345678901234567"))
}

func TestValidate_Idempotent(t *testing.T) {
	token := "76561198000000000"
	first := Validate(token)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate(token))
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, 1, digits(0))
	assert.Equal(t, 1, digits(9))
	assert.Equal(t, 2, digits(10))
	assert.Equal(t, 20, digits(18446744073709551615))
}
