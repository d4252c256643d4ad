package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	t.Run("accepts positive decimal", func(t *testing.T) {
		amount, err := ValidateAmount("500.15")
		require.NoError(t, err)
		assert.Equal(t, "500.15", amount.String())
	})

	t.Run("accepts integer amount", func(t *testing.T) {
		amount, err := ValidateAmount("1000")
		require.NoError(t, err)
		assert.True(t, amount.IsPositive())
	})

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		amount, err := ValidateAmount("  250.04  ")
		require.NoError(t, err)
		assert.Equal(t, "250.04", amount.String())
	})

	t.Run("rejects invalid inputs echoing the raw value", func(t *testing.T) {
		cases := []string{"", "   ", "abc", "12abc", "-5", "0", "0.00", "NaN", "Inf"}
		for _, raw := range cases {
			_, err := ValidateAmount(raw)
			require.Error(t, err, "input %q", raw)
			assert.Contains(t, err.Error(), raw)
		}
	})
}

func TestValidateDate(t *testing.T) {
	t.Run("accepts non-blank date", func(t *testing.T) {
		date, err := ValidateDate(" 2025-01-10 ")
		require.NoError(t, err)
		assert.Equal(t, "2025-01-10", date)
	})

	t.Run("rejects blank date", func(t *testing.T) {
		_, err := ValidateDate("   ")
		assert.Error(t, err)
	})
}

func TestValidateTime(t *testing.T) {
	t.Run("accepts non-blank time", func(t *testing.T) {
		v, err := ValidateTime("10:30:00")
		require.NoError(t, err)
		assert.Equal(t, "10:30:00", v)
	})

	t.Run("rejects blank time", func(t *testing.T) {
		_, err := ValidateTime("")
		assert.Error(t, err)
	})
}

func TestValidateReference(t *testing.T) {
	t.Run("blank reference is valid and normalizes to empty", func(t *testing.T) {
		ref, err := ValidateReference("   ")
		require.NoError(t, err)
		assert.Equal(t, "", ref)
	})

	t.Run("keeps free text", func(t *testing.T) {
		ref, err := ValidateReference(" ABC-123 ")
		require.NoError(t, err)
		assert.Equal(t, "ABC-123", ref)
	})
}

func TestValidateHouseNumber(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("accepts numbers inside range", func(t *testing.T) {
		for _, raw := range []string{"1", "15", "66", " 40 "} {
			n, err := cfg.ValidateHouseNumber(raw)
			require.NoError(t, err, "input %q", raw)
			assert.Positive(t, n)
		}
	})

	t.Run("rejects out-of-range and non-numeric input", func(t *testing.T) {
		for _, raw := range []string{"0", "67", "-3", "", "abc", "4.5"} {
			_, err := cfg.ValidateHouseNumber(raw)
			assert.Error(t, err, "input %q", raw)
		}
	})

	t.Run("respects configured bounds", func(t *testing.T) {
		narrow := ValidatorConfig{MinHouse: 10, MaxHouse: 20}
		_, err := narrow.ValidateHouseNumber("9")
		assert.Error(t, err)
		n, err := narrow.ValidateHouseNumber("10")
		require.NoError(t, err)
		assert.Equal(t, 10, n)
	})
}
