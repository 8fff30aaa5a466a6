// Package handler serves the storefront cart and checkout API over HTTP.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
	"github.com/xenking/pandam-storefront/internal/domain/session"
	"github.com/xenking/pandam-storefront/pkg/httpmiddleware"
)

// Handler serves the storefront API for the devices in a Registry.
type Handler struct {
	devices  *Registry
	receipts order.ReceiptStore
	table    pricing.FeeTable
}

// NewHandler returns a Handler. receipts may be nil.
func NewHandler(devices *Registry, receipts order.ReceiptStore, table pricing.FeeTable) *Handler {
	return &Handler{devices: devices, receipts: receipts, table: table}
}

// Routes returns the API router. It expects the DeviceID middleware to have
// run.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(h.withDevice, h.signIn)

		r.Get("/session", h.getSession)
		r.Post("/session/signout", h.signOut)

		r.Get("/cart", h.getCart)
		r.Post("/cart", h.addToCart)
		r.Delete("/cart", h.clearCart)
		r.Post("/cart/increment", h.incrementCart)
		r.Patch("/cart/{productId}/{weight}", h.changeQuantity)
		r.Delete("/cart/{productId}/{weight}", h.removeFromCart)

		r.Post("/checkout", h.startCheckout)
		r.Get("/checkout/{id}", h.getCheckout)
		r.Post("/checkout/{id}/submit", h.submitCheckout)

		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}/confirmation", h.getConfirmation)

		r.Get("/notifications", h.drainNotifications)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

type deviceKey struct{}

func deviceFrom(ctx context.Context) *Device {
	d, _ := ctx.Value(deviceKey{}).(*Device)
	return d
}

func (h *Handler) withDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := httpmiddleware.DeviceIDFromContext(r.Context())
		if id == "" {
			httpmiddleware.WriteError(w, http.StatusBadRequest, "missing device id")
			return
		}
		d, err := h.devices.Device(r.Context(), id)
		if err != nil {
			zctx.From(r.Context()).Error("Open device", zap.Error(err))
			httpmiddleware.WriteError(w, http.StatusInternalServerError, "device unavailable")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceKey{}, d)))
	})
}

// signIn signs the device in with a bearer ID token. Requests without one
// keep whatever identity the device already has.
func (h *Handler) signIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearer(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		tok, err := session.ParseIDToken(raw)
		if err != nil {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid id token")
			return
		}
		if _, err := tok.Token(r.Context()); err != nil {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "id token expired")
			return
		}

		d := deviceFrom(r.Context())
		if u, ok := d.Session.User(); ok && u.ID != tok.User().ID {
			d.Session.SignOut(r.Context())
		}
		if d.Session.SignIn(r.Context(), tok.User(), tok) {
			zctx.From(r.Context()).Info("Signed in", zap.String("user_id", tok.User().ID))
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(r *http.Request) (string, bool) {
	v := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(v, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r.Context())
	u, ok := d.Session.User()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSession(e, d.ID, u, ok) })
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	deviceFrom(r.Context()).Session.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) drainNotifications(w http.ResponseWriter, r *http.Request) {
	items := deviceFrom(r.Context()).Inbox.Drain()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeNotifications(e, items) })
}
