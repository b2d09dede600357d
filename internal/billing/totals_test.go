package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rate(v float64) *float64 { return &v }

func TestComputeLineTotals_SingleLine(t *testing.T) {
	totals := ComputeLineTotals([]Line{
		{Description: "Développement", Quantity: 10, UnitPrice: 80, VATRate: rate(20)},
	})

	assert.Equal(t, 800.0, totals.SubtotalHT)
	assert.Equal(t, 160.0, totals.TaxAmount)
	assert.Equal(t, 960.0, totals.TotalTTC)
	require.Len(t, totals.Lines, 1)
	assert.Equal(t, 960.0, totals.Lines[0].TotalTTC)
}

func TestComputeLineTotals_DefaultsVATRate(t *testing.T) {
	totals := ComputeLineTotals([]Line{{Description: "Audit", Quantity: 1, UnitPrice: 100}})

	assert.Equal(t, DefaultVATRate, totals.Lines[0].VATRate)
	assert.Equal(t, 120.0, totals.TotalTTC)
}

func TestComputeLineTotals_MixedRatesSumRoundedLines(t *testing.T) {
	totals := ComputeLineTotals([]Line{
		{Description: "Hébergement", Quantity: 3, UnitPrice: 19.99, VATRate: rate(20)},
		{Description: "Livre", Quantity: 1, UnitPrice: 12.35, VATRate: rate(5.5)},
		{Description: "Formation", Quantity: 0.5, UnitPrice: 333.33, VATRate: rate(0)},
	})

	var ht, tax, ttc float64
	for _, l := range totals.Lines {
		ht += l.TotalHT
		tax += l.TaxAmount
		ttc += l.TotalTTC
		assert.InDelta(t, l.TotalHT*(1+l.VATRate/100), l.TotalTTC, 0.01)
	}
	assert.InDelta(t, ht, totals.SubtotalHT, 0.001)
	assert.InDelta(t, tax, totals.TaxAmount, 0.001)
	assert.InDelta(t, ttc, totals.TotalTTC, 0.001)
	assert.InDelta(t, totals.SubtotalHT+totals.TaxAmount, totals.TotalTTC, 0.001)
	assert.InDelta(t, 59.97+12.35+166.67, totals.SubtotalHT, 0.001)
}

func TestComputeLineTotals_Empty(t *testing.T) {
	totals := ComputeLineTotals(nil)
	assert.Zero(t, totals.TotalTTC)
	assert.Empty(t, totals.Lines)
}

func TestValidateLines(t *testing.T) {
	assert.Error(t, ValidateLines(nil))
	assert.Error(t, ValidateLines([]Line{{Description: "", Quantity: 1, UnitPrice: 1}}))
	assert.Error(t, ValidateLines([]Line{{Description: "x", Quantity: 0, UnitPrice: 1}}))
	assert.Error(t, ValidateLines([]Line{{Description: "x", Quantity: 1, UnitPrice: 1, VATRate: rate(120)}}))
	assert.NoError(t, ValidateLines([]Line{{Description: "x", Quantity: 2, UnitPrice: 0}}))
}

func TestFormatNumber(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "FAC-2026-0042", FormatNumber(PrefixInvoice, at, 42))
	assert.Equal(t, "DEV-2026-12345", FormatNumber(PrefixQuote, at, 12345))
}

func TestAmountsMatch(t *testing.T) {
	assert.True(t, AmountsMatch(960, 960.004))
	assert.False(t, AmountsMatch(960, 960.02))
}
