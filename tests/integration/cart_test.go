//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestCart_Seeded(t *testing.T) {
	resp := do(t, http.MethodGet, "/api/cart", seededDevice, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[cartResponse](t, resp)
	if len(body.Items) != 2 {
		t.Fatalf("expected 2 seeded lines, got %d", len(body.Items))
	}
	if body.Count != 3 {
		t.Errorf("count: got %d, want 3", body.Count)
	}
	// 2×200 + 1×150 reaches free delivery.
	if body.Totals.Total != 550 || body.Totals.DeliveryFee != 0 {
		t.Errorf("totals: got %+v, want total 550 with free delivery", body.Totals)
	}
}

func TestCart_GuestLifecycle(t *testing.T) {
	const device = "it-guest-cart"

	resp := do(t, http.MethodPost, "/api/cart", device, cartLine{
		ProductID: "P1", Name: "Kola Urundai", Price: 200, Weight: "500g", Quantity: 2,
	})
	body := decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add: expected 200, got %d", resp.StatusCode)
	}
	if body.Totals.Total != 430 {
		t.Errorf("total: got %v, want 430", body.Totals.Total)
	}

	resp = do(t, http.MethodPatch, "/api/cart/P1/500g", device, map[string]int{"delta": 9})
	body = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if len(body.Items) != 1 || body.Items[0].Quantity != 5 {
		t.Fatalf("quantity should clamp to 5, got %+v", body.Items)
	}

	resp = do(t, http.MethodDelete, "/api/cart/P1/500g", device, nil)
	body = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	if body.Count != 0 {
		t.Errorf("count after remove: got %d, want 0", body.Count)
	}
}

func TestCart_UnknownLine(t *testing.T) {
	resp := do(t, http.MethodDelete, "/api/cart/NOPE/1kg", "it-unknown-line", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("code: got %d, want 404", body.Code)
	}
}
