package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/pkg/httpmiddleware"
)

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	var direct []cart.Line
	err := readJSON(r, func(d *jx.Decoder) (err error) {
		direct, err = decodeDirect(d)
		return err
	})
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := deviceFrom(r.Context())
	if len(direct) == 0 && d.Cart.Len() == 0 {
		httpmiddleware.WriteError(w, http.StatusConflict, "cart is empty")
		return
	}
	co := d.StartCheckout(direct)
	zctx.From(r.Context()).Info("Checkout started",
		zap.String("checkout_id", co.ID()),
		zap.Bool("direct", co.Direct()),
	)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCheckout(e, co) })
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) (*order.Coordinator, bool) {
	co, ok := deviceFrom(r.Context()).Checkout(chi.URLParam(r, "id"))
	if !ok {
		httpmiddleware.WriteError(w, http.StatusNotFound, "checkout not found")
	}
	return co, ok
}

func (h *Handler) getCheckout(w http.ResponseWriter, r *http.Request) {
	co, ok := h.checkout(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCheckout(e, co) })
}

func (h *Handler) submitCheckout(w http.ResponseWriter, r *http.Request) {
	co, ok := h.checkout(w, r)
	if !ok {
		return
	}
	var form checkout.Form
	err := readJSON(r, func(d *jx.Decoder) (err error) {
		form, err = decodeForm(d)
		return err
	})
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := co.Submit(r.Context(), form)
	if err != nil {
		h.submitError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeResult(e, res) })
}

func (h *Handler) submitError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *order.ValidationError
		serr *order.SubmitError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, func(e *jx.Encoder) {
			encodeFieldErrors(e, "Please fill all required fields correctly", verr.Errors)
		})
	case errors.As(err, &serr):
		zctx.From(r.Context()).Warn("Order rejected", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("code")
			e.Int(http.StatusBadGateway)
			e.FieldStart("kind")
			e.Str(string(serr.Kind))
			e.FieldStart("message")
			e.Str(serr.UserMessage())
			e.ObjEnd()
		})
	case errors.Is(err, order.ErrPaymentWindowExpired):
		httpmiddleware.WriteError(w, http.StatusGone, userMessage(err))
	case errors.Is(err, order.ErrSignInRequired):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, userMessage(err))
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrSubmitInProgress),
		errors.Is(err, order.ErrAlreadyPlaced):
		httpmiddleware.WriteError(w, http.StatusConflict, userMessage(err))
	default:
		zctx.From(r.Context()).Error("Submit checkout", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "failed to place order")
	}
}

// userMessage is the shopper-facing copy for a checkout failure.
func userMessage(err error) string {
	var serr *order.SubmitError
	switch {
	case errors.As(err, &serr):
		return serr.UserMessage()
	case errors.Is(err, order.ErrPaymentWindowExpired):
		return "Payment time expired. Please refresh and try again."
	case errors.Is(err, order.ErrSignInRequired):
		return "Please sign in to complete your order"
	case errors.Is(err, order.ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, order.ErrSubmitInProgress):
		return "Your order is already being placed"
	case errors.Is(err, order.ErrAlreadyPlaced):
		return "This order has already been placed"
	}
	return err.Error()
}
