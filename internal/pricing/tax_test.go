package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestToTTC(t *testing.T) {
	require.True(t, ToTTC(MustMoney("135"), decimal.NewFromInt(20)).Equal(MustMoney("162")))
	require.True(t, ToTTC(MustMoney("100"), decimal.RequireFromString("5.5")).Equal(MustMoney("105.5")))
	require.True(t, ToTTC(MustMoney("100"), decimal.Zero).Equal(MustMoney("100")))
}

func TestTaxRoundTrip(t *testing.T) {
	rates := []decimal.Decimal{decimal.Zero, decimal.NewFromInt(20), decimal.RequireFromString("5.5")}
	amounts := []string{"0", "0.01", "1", "19.99", "135", "1720", "3333.33", "12345.67"}
	for _, rate := range rates {
		for _, raw := range amounts {
			x := MustMoney(raw)
			back := ToHT(ToTTC(x, rate), rate)
			diff := back.Sub(x).Decimal().Abs()
			require.Truef(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")), "rate %s amount %s: got %s", rate, raw, back)
			require.Equalf(t, x.Display(), back.Display(), "rate %s amount %s", rate, raw)
		}
	}
}
