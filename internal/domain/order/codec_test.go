package order

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
)

func TestOrderEncode_BackendShape(t *testing.T) {
	o := Build([]cart.Line{line("P1", "500g", 200, 2)}, codForm(), pricing.Simple)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	o.Encode(e)

	assert.JSONEq(t, `{
		"paymentMethod": "cod",
		"items": [{
			"productId": "P1", "name": "Item P1", "price": 200, "quantity": 2,
			"weight": "500g", "image": "P1.jpg", "variantIndex": 0, "weightIndex": 0
		}],
		"shippingAddress": {
			"name": "Meena Raman", "street": "12 Car Street", "city": "Madurai",
			"state": "TN", "postalCode": "625001", "phone": "9876543210",
			"email": "meena@example.com"
		},
		"totalAmount": 430,
		"paymentDetails": {}
	}`, e.String())
}

func TestResponseDecode(t *testing.T) {
	const body = `{
		"success": true,
		"order": {
			"_id": "65a3f0c2e4b0a1b2c3d4e5f6",
			"userId": "u1",
			"status": "pending",
			"createdAt": "2025-01-14T10:30:00.000Z",
			"paymentMethod": "upi",
			"paymentDetails": {"upiId": "meena@okbank"},
			"items": [{"productId": "P1", "name": "Kola Urundai", "price": "200.00", "quantity": 2, "weight": "500g"}],
			"shippingAddress": {"name": "Meena Raman", "postalCode": "625001", "country": "IN"},
			"totalAmount": 430
		},
		"inventoryUpdate": {"failed": 1, "details": [{"productId": "P1", "error": "stock"}]}
	}`

	var r Response
	require.NoError(t, r.Decode(jx.DecodeStr(body)))
	require.True(t, r.Success)
	require.NotNil(t, r.Order)
	assert.Equal(t, "65a3f0c2e4b0a1b2c3d4e5f6", r.Order.ID)
	assert.Equal(t, StatusPending, r.Order.Status)
	assert.True(t, r.Order.CreatedAt.Equal(fixedNow))
	assert.Equal(t, checkout.MethodUPI, r.Order.PaymentMethod)
	assert.Equal(t, "meena@okbank", r.Order.PaymentDetails.UPIID)
	require.Len(t, r.Order.Items, 1)
	assert.Equal(t, "200", r.Order.Items[0].Price.String())
	assert.Equal(t, "625001", r.Order.ShippingAddress.PostalCode)
	require.NotNil(t, r.InventoryUpdate)
	assert.Equal(t, 1, r.InventoryUpdate.Failed)
	assert.JSONEq(t, `[{"productId": "P1", "error": "stock"}]`, string(r.InventoryUpdate.Details))
}

func TestResponseDecode_MessageFallback(t *testing.T) {
	var r Response
	require.NoError(t, r.Decode(jx.DecodeStr(`{"success": false, "message": "Invalid postal code", "order": null}`)))
	assert.False(t, r.Success)
	assert.Nil(t, r.Order)
	assert.Equal(t, "Invalid postal code", r.Error)
}

func TestPlacedRoundTrip(t *testing.T) {
	p := okResponse(Build([]cart.Line{line("P1", "500g", 200, 2)}, codForm(), pricing.Simple)).Order
	p.PaymentDetails = PaymentDetails{CardLast4: "4242"}

	got, err := DecodePlaced(EncodePlaced(*p))
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, p.TotalAmount.Equal(got.TotalAmount))
	assert.Equal(t, p.ShippingAddress, got.ShippingAddress)
	assert.Equal(t, p.PaymentDetails, got.PaymentDetails)
}
