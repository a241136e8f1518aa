// Package pricing computes item prices, tax and display strings for guest
// orders.  All amounts are integer cents.
package pricing

import (
	"math"

	"github.com/iliyamo/pod-kiosk/internal/model"
)

// ItemPrice returns the price of qty units of an item whose first
// included units are free.  The first unit beyond the included quantity
// costs base; every unit after that costs additional, or base again when
// additional is zero.
func ItemPrice(base, additional int64, included, qty int) int64 {
	if qty <= 0 || qty <= included {
		return 0
	}
	if additional == 0 {
		additional = base
	}
	extra := int64(qty - included)
	return base + additional*(extra-1)
}

// Price applies ItemPrice to a menu item.
func Price(item model.MenuItem, qty int) int64 {
	return ItemPrice(item.BasePriceCents, item.AdditionalPriceCents, item.IncludedQuantity, qty)
}

// Line prices one order line by the selection mode of its section.  A
// SINGLE choice costs the base price, MULTIPLE quantities follow the
// tiers of ItemPrice and slider levels are free.
func Line(item model.MenuItem, qty int) int64 {
	switch item.Mode {
	case model.ModeSingle:
		if qty <= 0 {
			return 0
		}
		return item.BasePriceCents
	case model.ModeSlider:
		return 0
	default:
		return Price(item, qty)
	}
}

// Tax returns round(subtotal × rate), rounding halves away from zero.
func Tax(subtotalCents int64, rate float64) int64 {
	return int64(math.Round(float64(subtotalCents) * rate))
}

// Totals builds the subtotal/tax/total triple for a guest order.
func Totals(subtotalCents int64, rate float64) model.Totals {
	tax := Tax(subtotalCents, rate)
	return model.Totals{
		SubtotalCents: subtotalCents,
		TaxCents:      tax,
		TotalCents:    subtotalCents + tax,
	}
}

// Sum adds the totals of several guests.
func Sum(all ...model.Totals) model.Totals {
	var out model.Totals
	for _, t := range all {
		out.SubtotalCents += t.SubtotalCents
		out.TaxCents += t.TaxCents
		out.TotalCents += t.TotalCents
	}
	return out
}
