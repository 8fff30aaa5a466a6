package order

import (
	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
)

// Items maps cart lines to order items. Negative variant and weight indexes
// are treated as unset and sent as 0.
func Items(lines []cart.Line) []Item {
	items := make([]Item, len(lines))
	for i, l := range lines {
		items[i] = Item{
			ProductID:    l.ProductID,
			Name:         l.Name,
			Price:        l.Price,
			Quantity:     l.Quantity,
			Weight:       l.Weight,
			Image:        l.Image,
			VariantIndex: max(l.VariantIndex, 0),
			WeightIndex:  max(l.WeightIndex, 0),
		}
	}
	return items
}

// ShippingAddress maps the checkout form to the backend address shape.
func ShippingAddress(form checkout.Form) Address {
	return Address{
		Name:       form.Address.Name,
		Street:     form.Address.Street,
		City:       form.Address.City,
		State:      form.Address.State,
		PostalCode: form.Address.Zip,
		Phone:      form.Contact.Phone,
		Email:      form.Contact.Email,
	}
}

// Details keeps the storable part of a payment. The full card number is
// reduced to its last four digits.
func Details(p checkout.Payment) PaymentDetails {
	switch p := p.(type) {
	case checkout.Card:
		return PaymentDetails{CardLast4: p.Last4()}
	case checkout.UPI:
		return PaymentDetails{UPIID: p.ID}
	case checkout.NetBanking:
		return PaymentDetails{Bank: p.Bank}
	default:
		return PaymentDetails{}
	}
}

// Build assembles the order payload for lines and a validated form, totalled
// with table.
func Build(lines []cart.Line, form checkout.Form, table pricing.FeeTable) Order {
	items := Items(lines)

	var method checkout.Method
	if form.Payment != nil {
		method = form.Payment.Method()
	}
	return Order{
		Items:           items,
		ShippingAddress: ShippingAddress(form),
		TotalAmount:     pricing.Compute(items, table).Total,
		PaymentMethod:   method,
		PaymentDetails:  Details(form.Payment),
	}
}
