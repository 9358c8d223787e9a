package decimal_test

import (
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/facturx/internal/decimal"
)

func TestFromInt(t *testing.T) {
	d := decimal.FromInt(100)
	assert.True(t, d.Equal(dec.NewFromInt(100)))
}

func TestFromString(t *testing.T) {
	d, err := decimal.FromString("123456.78")
	require.NoError(t, err)
	assert.True(t, d.Equal(dec.RequireFromString("123456.78")))

	_, err = decimal.FromString("not-a-number")
	require.Error(t, err)
}

func TestMustFromString(t *testing.T) {
	d := decimal.MustFromString("999.99")
	assert.True(t, d.Equal(dec.RequireFromString("999.99")))

	assert.Panics(t, func() {
		decimal.MustFromString("invalid")
	})
}

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1"},
		{"2.675", "2.68"},
		{"-1.005", "-1.01"},
		{"-0.004", "0"},
		{"10", "10"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := decimal.RoundMoney(dec.RequireFromString(tt.in))
			assert.True(t, got.Equal(dec.RequireFromString(tt.want)),
				"round(%s) = %s, want %s", tt.in, got, tt.want)
		})
	}
}

func TestTaxOf(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		want   string
	}{
		{"20% of 100", "100", "0.20", "20"},
		{"20% of 0.03 rounds half up", "0.03", "0.20", "0.01"},
		{"5.5% of 10.10", "10.10", "0.055", "0.56"},
		{"zero rate", "1000", "0", "0"},
		{"negative base", "-30", "0.20", "-6"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decimal.TaxOf(dec.RequireFromString(tt.amount), dec.RequireFromString(tt.rate))
			assert.True(t, got.Equal(dec.RequireFromString(tt.want)),
				"got %s, want %s", got, tt.want)
		})
	}
}

func TestSigned(t *testing.T) {
	amount := dec.NewFromInt(30)
	assert.True(t, decimal.Signed(amount, true).Equal(dec.NewFromInt(30)))
	assert.True(t, decimal.Signed(amount, false).Equal(dec.NewFromInt(-30)))
}

func TestToPercent(t *testing.T) {
	assert.Equal(t, "20", decimal.ToPercent(dec.RequireFromString("0.20")).String())
	assert.Equal(t, "5.5", decimal.ToPercent(dec.RequireFromString("0.055")).String())
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "200.00", decimal.FormatAmount(dec.NewFromInt(200)))
	assert.Equal(t, "-6.00", decimal.FormatAmount(dec.NewFromInt(-6)))
	assert.Equal(t, "20.00", decimal.FormatPercent(dec.NewFromInt(20)))
	assert.Equal(t, "2.5", decimal.FormatQuantity(dec.RequireFromString("2.500")))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "50.00", decimal.FormatPrice(dec.NewFromInt(50)))
	assert.Equal(t, "50.00", decimal.FormatPrice(dec.RequireFromString("50.0000")))
	assert.Equal(t, "0.625", decimal.FormatPrice(dec.RequireFromString("0.6250")))
	assert.Equal(t, "19.90", decimal.FormatPrice(dec.RequireFromString("19.9")))
}

func TestSum(t *testing.T) {
	values := []dec.Decimal{
		dec.NewFromInt(100),
		dec.NewFromInt(200),
		dec.NewFromInt(300),
	}
	result := decimal.Sum(values)
	assert.True(t, result.Equal(dec.NewFromInt(600)))
}

func TestSum_Empty(t *testing.T) {
	result := decimal.Sum([]dec.Decimal{})
	assert.True(t, result.IsZero())
}

func TestIsNonNegative(t *testing.T) {
	assert.True(t, decimal.IsNonNegative(dec.NewFromInt(1)))
	assert.True(t, decimal.IsNonNegative(dec.Zero))
	assert.False(t, decimal.IsNonNegative(dec.NewFromInt(-1)))
}
