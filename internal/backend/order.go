package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pandam-storefront/internal/domain/order"
)

// PlaceOrder submits o. A 2xx reply is decoded into the Response even when it
// reports success=false; other statuses return *order.RemoteError.
func (c *Client) PlaceOrder(ctx context.Context, o order.Order) (*order.Response, error) {
	var resp order.Response
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/orders",
		encode: o.Encode,
	}, resp.Decode)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	return &resp, nil
}

// GetOrder loads one of the user's orders. A 404 maps to order.ErrNotFound.
func (c *Client) GetOrder(ctx context.Context, id string) (*order.Placed, error) {
	var p order.Placed
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/orders/" + url.PathEscape(id)}, p.Decode)
	if err != nil {
		var remote *order.RemoteError
		if errors.As(err, &remote) && remote.StatusCode == http.StatusNotFound {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return &p, nil
}

// ListOrders returns the user's orders, filtered by status when non-empty.
func (c *Client) ListOrders(ctx context.Context, status order.Status) ([]order.Placed, error) {
	filter := string(status)
	if filter == "" {
		filter = "all"
	}
	var orders []order.Placed
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/orders",
		query:  url.Values{"status": {filter}},
	}, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "orders" || d.Next() == jx.Null {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				var p order.Placed
				if err := p.Decode(d); err != nil {
					return err
				}
				orders = append(orders, p)
				return nil
			})
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}
