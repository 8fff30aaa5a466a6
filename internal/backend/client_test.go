package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   string
}

// fakeBackend serves canned replies per "METHOD /path" and records requests.
type fakeBackend struct {
	mu       sync.Mutex
	requests []recorded
	replies  map[string]reply
}

type reply struct {
	status int
	body   string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recorded{
		method: r.Method,
		path:   r.URL.Path,
		query:  r.URL.RawQuery,
		auth:   r.Header.Get("Authorization"),
		body:   string(body),
	})
	rep, ok := f.replies[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: `{"message":"Route not found"}`}
	}
	if rep.status == 0 {
		rep.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (f *fakeBackend) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, replies map[string]reply) (*Client, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{replies: replies}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	n := 0
	tokens := session.TokenFunc(func(context.Context) (string, error) {
		n++
		return "tok-" + string(rune('0'+n)), nil
	})
	c, err := NewClient(srv.URL+"/", tokens, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, fb
}

func TestNewClient_RejectsRelativeURL(t *testing.T) {
	_, err := NewClient("localhost:5000", session.New())
	require.Error(t, err)
}

func TestFetch(t *testing.T) {
	c, fb := newTestClient(t, map[string]reply{
		"GET /api/cart": {body: `[
			{"_id":"c1","productId":"P1","name":"Kola Urundai","price":200,"quantity":9,"weight":"500g"},
			{"_id":"c2","productId":"P2","name":"Murukku","price":"95.50","quantity":1,"weight":"250g","userId":"u1"}
		]`},
	})

	lines, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "c1", lines[0].ServerID)
	assert.Equal(t, cart.MaxQuantity, lines[0].Quantity)
	assert.Equal(t, "95.5", lines[1].Price.String())
	assert.Equal(t, "Bearer tok-1", fb.last().auth)
}

func TestFetch_Null(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{"GET /api/cart": {body: `null`}})
	lines, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestUpsert(t *testing.T) {
	line := cart.Line{ProductID: "P1", Name: "Kola Urundai", Price: decimal.NewFromInt(200), Weight: "500g", Quantity: 2}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"single line", `{"_id":"c9","productId":"P1","weight":"500g","quantity":2}`, "c9"},
		{"whole cart", `[{"_id":"c1","productId":"P0","weight":"1kg"},{"_id":"c9","productId":"P1","weight":"500g"}]`, "c9"},
		{"no body", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, fb := newTestClient(t, map[string]reply{"POST /api/cart": {status: http.StatusCreated, body: tt.body}})

			id, err := c.Upsert(context.Background(), line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
			assert.JSONEq(t, `{
				"productId":"P1","name":"Kola Urundai","price":200,"quantity":2,
				"weight":"500g","image":"","variantIndex":0,"weightIndex":0
			}`, fb.last().body)
		})
	}
}

func TestUpdateQuantityDeleteClear(t *testing.T) {
	c, fb := newTestClient(t, map[string]reply{
		"PUT /api/cart/c1":    {body: `{"_id":"c1","quantity":3}`},
		"DELETE /api/cart/c1": {body: `{"message":"Item removed"}`},
		"DELETE /api/cart":    {body: `{"message":"Cart cleared"}`},
	})
	ctx := context.Background()

	assert.Nil(t, c.UpdateQuantity(ctx, "c1", 3))
	assert.JSONEq(t, `{"quantity":3}`, fb.last().body)

	assert.Nil(t, c.Delete(ctx, "c1"))
	assert.Equal(t, http.MethodDelete, fb.last().method)
	assert.Equal(t, "/api/cart/c1", fb.last().path)

	assert.Nil(t, c.Clear(ctx))
	assert.Equal(t, "/api/cart", fb.last().path)

	assert.Len(t, fb.requests, 3)
	assert.Equal(t, "Bearer tok-3", fb.last().auth, "token is fetched per call")
}

func TestRemoteError(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"PUT /api/cart/c1": {status: http.StatusBadRequest, body: `{"error":"Quantity must be between 1 and 5"}`},
	})

	err := c.UpdateQuantity(context.Background(), "c1", 9)
	var remote *order.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, "Quantity must be between 1 and 5", remote.Message)
}

func TestTokenFailure(t *testing.T) {
	c, fb := newTestClient(t, nil)
	c.tokens = session.New()

	_, err := c.Fetch(context.Background())
	require.ErrorIs(t, err, session.ErrSignedOut)
	assert.Empty(t, fb.requests)
}

func testOrder() order.Order {
	return order.Order{
		Items: []order.Item{{ProductID: "P1", Name: "Kola Urundai", Price: decimal.NewFromInt(200), Quantity: 2, Weight: "500g"}},
		ShippingAddress: order.Address{
			Name: "Meena Raman", Street: "12 Car Street", City: "Madurai", State: "TN",
			PostalCode: "625001", Phone: "9876543210", Email: "meena@example.com",
		},
		TotalAmount:    decimal.NewFromInt(430),
		PaymentMethod:  checkout.MethodCard,
		PaymentDetails: order.PaymentDetails{CardLast4: "4242"},
	}
}

func TestPlaceOrder(t *testing.T) {
	c, fb := newTestClient(t, map[string]reply{
		"POST /api/orders": {status: http.StatusCreated, body: `{
			"success": true,
			"order": {"_id":"65a3f0c2e4b0a1b2c3d4e5f6","status":"pending","totalAmount":430,"paymentMethod":"card"},
			"inventoryUpdate": {"failed": 0, "details": []}
		}`},
	})

	resp, err := c.PlaceOrder(context.Background(), testOrder())
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Order)
	assert.Equal(t, "65a3f0c2e4b0a1b2c3d4e5f6", resp.Order.ID)
	assert.Zero(t, resp.InventoryUpdate.Failed)

	body := fb.last().body
	assert.Contains(t, body, `"totalAmount":430`)
	assert.Contains(t, body, `"paymentDetails":{"cardLast4":"4242"}`)
	assert.NotContains(t, body, "4111")
}

func TestPlaceOrder_Rejected(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"POST /api/orders": {status: http.StatusBadRequest, body: `{"success":false,"error":"Total amount mismatch"}`},
	})

	_, err := c.PlaceOrder(context.Background(), testOrder())
	var remote *order.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, order.KindPriceMismatch, order.Classify(remote.Message))
}

func TestGetOrder(t *testing.T) {
	c, _ := newTestClient(t, map[string]reply{
		"GET /api/orders/o1": {body: `{"_id":"o1","status":"shipped","createdAt":"2025-01-14T10:30:00Z"}`},
	})
	ctx := context.Background()

	p, err := c.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, p.Status)

	_, err = c.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestListOrders(t *testing.T) {
	c, fb := newTestClient(t, map[string]reply{
		"GET /api/orders": {body: `{"orders":[{"_id":"o1","status":"pending"},{"_id":"o2","status":"delivered"}],"total":2}`},
	})
	ctx := context.Background()

	orders, err := c.ListOrders(ctx, "")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "status=all", fb.last().query)

	_, err = c.ListOrders(ctx, order.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, "status=delivered", fb.last().query)
}
