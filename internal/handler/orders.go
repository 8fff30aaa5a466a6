package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/session"
	"github.com/xenking/pandam-storefront/pkg/httpmiddleware"
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r.Context())
	if !d.Session.Authenticated() {
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "sign in to view your orders")
		return
	}

	q := r.URL.Query()
	status, err := order.ParseStatus(q.Get("status"))
	if err != nil {
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	page := 1
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			httpmiddleware.WriteError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
	}

	p, err := order.NewHistory(d.Backend).Page(r.Context(), status, page)
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePage(e, p) })
}

func (h *Handler) getConfirmation(w http.ResponseWriter, r *http.Request) {
	d := deviceFrom(r.Context())
	u, ok := d.Session.User()
	if !ok {
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "sign in to view your orders")
		return
	}
	placed, conf, err := order.NewConfirmer(h.receipts, d.Backend, h.table).
		Confirm(r.Context(), u.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.orderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order")
		placed.Encode(e)
		e.FieldStart("confirmation")
		encodeConfirmation(e, conf)
		e.ObjEnd()
	})
}

func (h *Handler) orderError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *order.RemoteError
	switch {
	case errors.Is(err, order.ErrNotFound):
		httpmiddleware.WriteError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, session.ErrSignedOut), errors.Is(err, session.ErrTokenExpired):
		httpmiddleware.WriteError(w, http.StatusUnauthorized, "sign in to view your orders")
	case errors.As(err, &remote):
		zctx.From(r.Context()).Warn("Backend order call", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusBadGateway, remote.Message)
	default:
		zctx.From(r.Context()).Error("Order lookup", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusBadGateway, "failed to load orders")
	}
}
