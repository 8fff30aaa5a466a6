package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
)

// Fetch returns the account cart.
func (c *Client) Fetch(ctx context.Context) ([]cart.Line, error) {
	var lines []cart.Line
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/cart"}, func(d *jx.Decoder) error {
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var l cart.Line
			if err := l.Decode(d); err != nil {
				return err
			}
			l.Quantity = cart.ClampQuantity(l.Quantity)
			lines = append(lines, l)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetch cart")
	}
	return lines, nil
}

// Upsert posts line and returns the server id of the stored line. The reply
// may be the stored line or the whole cart; both are understood.
func (c *Client) Upsert(ctx context.Context, line cart.Line) (string, error) {
	var id string
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/cart",
		encode: func(e *jx.Encoder) {
			e.ObjStart()
			line.EncodeFields(e)
			e.ObjEnd()
		},
	}, func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.Object:
			var got cart.Line
			if err := got.Decode(d); err != nil {
				return err
			}
			id = got.ServerID
			return nil
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				var got cart.Line
				if err := got.Decode(d); err != nil {
					return err
				}
				if got.Key() == line.Key() {
					id = got.ServerID
				}
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", errors.Wrap(err, "upsert cart line")
	}
	return id, nil
}

// UpdateQuantity sets the quantity of a stored line.
func (c *Client) UpdateQuantity(ctx context.Context, serverID string, quantity int) error {
	err := c.do(ctx, request{
		method: http.MethodPut,
		path:   "/api/cart/" + url.PathEscape(serverID),
		encode: func(e *jx.Encoder) {
			e.ObjStart()
			e.FieldStart("quantity")
			e.Int(quantity)
			e.ObjEnd()
		},
	}, nil)
	if err != nil {
		return errors.Wrap(err, "update cart line")
	}
	return nil
}

// Delete removes a stored line.
func (c *Client) Delete(ctx context.Context, serverID string) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/cart/" + url.PathEscape(serverID)}, nil)
	if err != nil {
		return errors.Wrap(err, "delete cart line")
	}
	return nil
}

// Clear empties the account cart.
func (c *Client) Clear(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodDelete, path: "/api/cart"}, nil)
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
