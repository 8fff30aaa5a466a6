// Package cart keeps a shopper's cart lines in memory, mirrored to durable
// device storage and, once signed in, to the backend cart.
package cart

import (
	"github.com/shopspring/decimal"
)

// Quantity bounds for a single line.
const (
	MinQuantity = 1
	MaxQuantity = 5
)

// ClampQuantity limits q to [MinQuantity, MaxQuantity].
func ClampQuantity(q int) int {
	return max(MinQuantity, min(MaxQuantity, q))
}

// Key identifies a line within a cart.
type Key struct {
	ProductID string
	Weight    string
}

// Line is one product at one weight variant.
type Line struct {
	ProductID   string
	Name        string
	Image       string
	Category    string
	District    string
	Description string
	Subtitle    string

	Price    decimal.Decimal
	Weight   string
	Quantity int

	VariantIndex int
	WeightIndex  int

	// ServerID is the backend cart line id; empty until the line is synced.
	ServerID string
}

// Key returns the line identity.
func (l Line) Key() Key { return Key{ProductID: l.ProductID, Weight: l.Weight} }

// Amount is price × quantity.
func (l Line) Amount() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func cloneLines(lines []Line) []Line {
	if lines == nil {
		return nil
	}
	return append(make([]Line, 0, len(lines)), lines...)
}
