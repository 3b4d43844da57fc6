package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{"0110123456", "254110123456"},
		{"07 1234 5678", "254712345678"},
		{"0712-345-678", "254712345678"},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.in)
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNormalizeRejectsInvalid(t *testing.T) {
	invalid := []string{
		"",
		"12345",
		"0812345678",   // not a mobile prefix
		"07123456789",  // too long
		"071234567",    // too short
		"255712345678", // wrong country code
		"not-a-number",
	}

	for _, in := range invalid {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrInvalid, in)
		assert.False(t, IsValid(in), in)
	}
}
