// Package pricing derives order totals from priced line items.
package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Item is anything that contributes price × quantity to a subtotal.
type Item interface {
	Amount() decimal.Decimal
}

// Totals is the breakdown shown on the cart and checkout screens and submitted
// with the order.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// Tier waives or reduces the delivery fee once the subtotal reaches Min.
type Tier struct {
	Min decimal.Decimal
	Fee decimal.Decimal
}

// FeeTable is a step function from subtotal to delivery fee.
type FeeTable struct {
	name  string
	base  decimal.Decimal
	tiers []Tier // sorted by Min, descending
}

// NewFeeTable builds a table charging base below the lowest tier. Tiers must
// be given from the highest threshold down.
func NewFeeTable(name string, base decimal.Decimal, tiers ...Tier) FeeTable {
	return FeeTable{name: name, base: base, tiers: tiers}
}

// Name of the table as accepted by ParseFeeTable.
func (t FeeTable) Name() string { return t.name }

// Fee returns the delivery fee for subtotal.
func (t FeeTable) Fee(subtotal decimal.Decimal) decimal.Decimal {
	for _, tier := range t.tiers {
		if subtotal.GreaterThanOrEqual(tier.Min) {
			return tier.Fee
		}
	}
	return t.base
}

var (
	// Simple is the two-step table: free delivery from 500, flat 30 below.
	Simple = NewFeeTable("simple", decimal.NewFromInt(30),
		Tier{Min: decimal.NewFromInt(500), Fee: decimal.Zero},
	)
	// Tiered is the five-step table shown on the cart screen.
	Tiered = NewFeeTable("tiered", decimal.NewFromInt(60),
		Tier{Min: decimal.NewFromInt(500), Fee: decimal.Zero},
		Tier{Min: decimal.NewFromInt(300), Fee: decimal.NewFromInt(30)},
		Tier{Min: decimal.NewFromInt(200), Fee: decimal.NewFromInt(40)},
		Tier{Min: decimal.NewFromInt(100), Fee: decimal.NewFromInt(50)},
	)

	// Default is the table order totals are submitted with.
	Default = Simple
)

// ParseFeeTable resolves a table by name. An empty name selects Default.
func ParseFeeTable(name string) (FeeTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Default, nil
	case Simple.name:
		return Simple, nil
	case Tiered.name:
		return Tiered, nil
	default:
		return FeeTable{}, errors.Errorf("unknown fee table %q", name)
	}
}

// Subtotal sums price × quantity over items.
func Subtotal[I Item](items []I) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount())
	}
	return sum
}

// Compute returns subtotal, delivery fee and total for items.
func Compute[I Item](items []I, table FeeTable) Totals {
	subtotal := Subtotal(items)
	fee := table.Fee(subtotal)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Total:       subtotal.Add(fee),
	}
}
