package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeSplit_TwelvePercent(t *testing.T) {
	tests := []struct {
		name         string
		gross        string
		wantFee      string
		wantProvider string
	}{
		{"round amount", "100.00", "12.00", "88.00"},
		{"typical session price", "450.00", "54.00", "396.00"},
		{"fee needs rounding up", "99.99", "12.00", "87.99"},
		{"fee rounds half up", "33.29", "3.99", "29.30"},
		{"small amount", "0.50", "0.06", "0.44"},
		{"cent", "0.01", "0.00", "0.01"},
		{"zero", "0.00", "0.00", "0.00"},
		{"large amount", "123456.78", "14814.81", "108641.97"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := decimal.RequireFromString(tt.gross)
			fee, provider := ComputeSplit(gross, DefaultFeeRate)

			assert.True(t, fee.Equal(decimal.RequireFromString(tt.wantFee)),
				"fee: got %s, want %s", fee, tt.wantFee)
			assert.True(t, provider.Equal(decimal.RequireFromString(tt.wantProvider)),
				"provider: got %s, want %s", provider, tt.wantProvider)
		})
	}
}

// The provider amount is defined as the exact remainder, so the split always
// reassembles into the gross regardless of rounding on the fee side.
func TestComputeSplit_Conservation(t *testing.T) {
	amounts := []string{"0.01", "0.03", "10.07", "33.29", "99.99", "100.01", "4999.37"}
	for _, raw := range amounts {
		gross := decimal.RequireFromString(raw)
		fee, provider := ComputeSplit(gross, DefaultFeeRate)
		assert.True(t, fee.Add(provider).Equal(gross),
			"split of %s does not reassemble: fee=%s provider=%s", gross, fee, provider)
		assert.False(t, fee.IsNegative())
		assert.False(t, provider.IsNegative())
	}
}

func TestComputeSplit_CustomRate(t *testing.T) {
	gross := decimal.RequireFromString("200.00")
	fee, provider := ComputeSplit(gross, decimal.NewFromFloat(0.15))

	assert.True(t, fee.Equal(decimal.RequireFromString("30.00")))
	assert.True(t, provider.Equal(decimal.RequireFromString("170.00")))
}

func TestComputeSplit_ZeroRate(t *testing.T) {
	gross := decimal.RequireFromString("150.00")
	fee, provider := ComputeSplit(gross, decimal.Zero)

	assert.True(t, fee.IsZero())
	assert.True(t, provider.Equal(gross))
}
