package service

import (
	"math"

	"tireshop_backend/internal/estimates/repository"
	"tireshop_backend/internal/estimates/transport"
)

// Totals is the money summary of an estimate, all amounts in cents.
type Totals struct {
	SubtotalCents  int64
	TaxAmountCents int64
	TotalCents     int64
}

// ItemTotalCents computes one line's extended price, rounding half away
// from zero so discount lines (negative unit price) round symmetrically.
func ItemTotalCents(quantity float64, unitPriceCents int64) int64 {
	return int64(math.Round(quantity * float64(unitPriceCents)))
}

// taxCents applies a basis-point rate with half-up rounding, in pure
// integer arithmetic.
func taxCents(subtotalCents, rateBps int64) int64 {
	if subtotalCents <= 0 || rateBps <= 0 {
		return 0
	}
	return (subtotalCents*rateBps + 5000) / 10000
}

// ComputeTotals sums every line item and applies tax.
func ComputeTotals(items []repository.Item, rateBps int64) Totals {
	var subtotal int64
	for _, it := range items {
		subtotal += it.TotalCents
	}
	tax := taxCents(subtotal, rateBps)
	return Totals{SubtotalCents: subtotal, TaxAmountCents: tax, TotalCents: subtotal + tax}
}

// ComputeApprovedTotals sums only the approved line items and applies tax
// to that subtotal. Declined lines contribute nothing, tax included. Items
// absent from the decision map keep their stored approval state.
func ComputeApprovedTotals(items []repository.Item, approvals map[int64]bool, rateBps int64) (Totals, int, int) {
	var subtotal int64
	approved, declined := 0, 0
	for _, it := range items {
		isApproved, decided := approvals[it.ID]
		if !decided {
			isApproved = it.IsApproved
		}
		if isApproved {
			subtotal += it.TotalCents
			approved++
		} else {
			declined++
		}
	}
	tax := taxCents(subtotal, rateBps)
	return Totals{SubtotalCents: subtotal, TaxAmountCents: tax, TotalCents: subtotal + tax}, approved, declined
}

// DeriveStatus maps the decision counts to the estimate's final status.
func DeriveStatus(approved, declined int) transport.EstimateStatus {
	switch {
	case declined == 0:
		return transport.StatusApproved
	case approved == 0:
		return transport.StatusDeclined
	default:
		return transport.StatusPartial
	}
}
