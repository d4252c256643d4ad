package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeHouseNumber(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"1000.1", 10, true},  // single fractional digit multiplies by 10
		{"1000.04", 4, true},  // two digits read literally
		{"1000.66", 66, true}, // upper bound
		{"1000.67", 0, false}, // past upper bound
		{"1000.00", 0, false}, // zero cents carry no house
		{"1000", 0, false},    // no fractional part
		{"1000.999", 0, false},
		{"500.15", 15, true},
		{"250,4", 40, true}, // comma separator on some bank receipts
		{"1000.", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := cfg.DecodeHouseNumber(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeHouseNumberIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 10; i++ {
		got, ok := cfg.DecodeHouseNumber("1000.1")
		assert.True(t, ok)
		assert.Equal(t, 10, got)
	}
}
