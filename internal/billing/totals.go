// Package billing holds the arithmetic shared by quotes and invoices.
package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultVATRate applies when a line does not state one
const DefaultVATRate = 20.0

var hundred = decimal.NewFromInt(100)

// Line is one priced line before totals are computed
type Line struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	// VATRate is a percentage; nil means DefaultVATRate
	VATRate *float64
}

// Rate returns the effective VAT rate of the line
func (l Line) Rate() float64 {
	if l.VATRate == nil {
		return DefaultVATRate
	}
	return *l.VATRate
}

// LineTotals are the cent-rounded amounts of a single line
type LineTotals struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	VATRate     float64
	TotalHT     float64
	TaxAmount   float64
	TotalTTC    float64
}

// Totals are the document level sums of the rounded lines
type Totals struct {
	SubtotalHT float64
	TaxAmount  float64
	TotalTTC   float64
	Lines      []LineTotals
}

// ComputeLineTotals prices every line and sums them.
// Each line is rounded half-up to the cent, then the rounded values are
// summed, so subtotal + tax == total holds exactly.
func ComputeLineTotals(items []Line) Totals {
	var subtotal, tax decimal.Decimal
	lines := make([]LineTotals, 0, len(items))

	for _, item := range items {
		rate := item.Rate()
		ht := decimal.NewFromFloat(item.Quantity).
			Mul(decimal.NewFromFloat(item.UnitPrice)).
			Round(2)
		lineTax := ht.Mul(decimal.NewFromFloat(rate)).Div(hundred).Round(2)
		ttc := ht.Add(lineTax)

		subtotal = subtotal.Add(ht)
		tax = tax.Add(lineTax)

		lines = append(lines, LineTotals{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			VATRate:     rate,
			TotalHT:     ht.InexactFloat64(),
			TaxAmount:   lineTax.InexactFloat64(),
			TotalTTC:    ttc.InexactFloat64(),
		})
	}

	return Totals{
		SubtotalHT: subtotal.InexactFloat64(),
		TaxAmount:  tax.InexactFloat64(),
		TotalTTC:   subtotal.Add(tax).InexactFloat64(),
		Lines:      lines,
	}
}

// ValidateLines rejects empty documents and nonsensical lines
func ValidateLines(items []Line) error {
	if len(items) == 0 {
		return fmt.Errorf("au moins une ligne est requise")
	}
	for i, item := range items {
		if item.Description == "" {
			return fmt.Errorf("ligne %d: description manquante", i+1)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("ligne %d: quantité invalide", i+1)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("ligne %d: prix unitaire invalide", i+1)
		}
		if rate := item.Rate(); rate < 0 || rate > 100 {
			return fmt.Errorf("ligne %d: taux de TVA invalide", i+1)
		}
	}
	return nil
}

// Document number prefixes
const (
	PrefixInvoice = "FAC"
	PrefixQuote   = "DEV"
	PrefixTicket  = "TCK"
)

// FormatNumber renders a sequential document number, e.g. FAC-2026-0042
func FormatNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, at.Year(), seq)
}

// AmountsMatch compares two money amounts to the cent
func AmountsMatch(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().LessThan(decimal.NewFromFloat(0.01))
}

// Round2 rounds a money amount to the cent
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
