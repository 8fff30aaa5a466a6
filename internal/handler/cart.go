package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/pkg/httpmiddleware"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, deviceFrom(r.Context()))
}

func (h *Handler) writeCart(w http.ResponseWriter, d *Device) {
	lines := d.Cart.Lines()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, lines, h.table) })
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	h.mutateWithLine(w, r, (*cart.Store).AddOrUpdate)
}

func (h *Handler) incrementCart(w http.ResponseWriter, r *http.Request) {
	h.mutateWithLine(w, r, (*cart.Store).AddOne)
}

func (h *Handler) mutateWithLine(w http.ResponseWriter, r *http.Request, apply func(*cart.Store, context.Context, cart.Line) error) {
	var line cart.Line
	if err := readJSON(r, line.Decode); err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if line.ProductID == "" || line.Weight == "" {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "productId and weight are required")
		return
	}
	if line.Price.IsNegative() {
		httpmiddleware.WriteError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	d := deviceFrom(r.Context())
	if err := apply(d.Cart, r.Context(), line); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.writeCart(w, d)
}

func (h *Handler) changeQuantity(w http.ResponseWriter, r *http.Request) {
	var delta int
	err := readJSON(r, func(d *jx.Decoder) (err error) {
		delta, err = decodeDelta(d)
		return err
	})
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := deviceFrom(r.Context())
	if _, err := d.Cart.ChangeQuantity(r.Context(), chi.URLParam(r, "productId"), chi.URLParam(r, "weight"), delta); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.writeCart(w, d)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r.Context())
	if err := d.Cart.Remove(r.Context(), chi.URLParam(r, "productId"), chi.URLParam(r, "weight")); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.writeCart(w, d)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r.Context())
	if err := d.Cart.Clear(r.Context(), true); err != nil {
		h.cartError(w, r, err)
		return
	}
	h.writeCart(w, d)
}

func (h *Handler) cartError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, cart.ErrLineNotFound) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "cart line not found")
		return
	}
	zctx.From(r.Context()).Error("Cart update", zap.Error(err))
	httpmiddleware.WriteError(w, http.StatusInternalServerError, "failed to save cart")
}
