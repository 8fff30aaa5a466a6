package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// PageSize is the number of orders per history page.
const PageSize = 5

// ParseStatus accepts a status name or "all"/"" for no filter.
func ParseStatus(s string) (Status, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.Errorf("unknown order status %q", s)
}

// Page is one page of order history.
type Page struct {
	Orders     []Placed
	Page       int
	TotalPages int
	Total      int
}

// History pages through the signed-in user's orders.
type History struct {
	lister Lister
}

// NewHistory returns a History over lister.
func NewHistory(lister Lister) *History {
	return &History{lister: lister}
}

// Page returns page n (1-based) of orders with status; an empty status
// lists all. Pages past the end come back empty.
func (h *History) Page(ctx context.Context, status Status, n int) (*Page, error) {
	orders, err := h.lister.ListOrders(ctx, status)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	if status != "" {
		// The backend filter is advisory; apply it here as well.
		filtered := orders[:0:0]
		for _, o := range orders {
			if o.Status == status {
				filtered = append(filtered, o)
			}
		}
		orders = filtered
	}
	return paginate(orders, n), nil
}

func paginate(orders []Placed, n int) *Page {
	n = max(n, 1)
	total := len(orders)
	pages := (total + PageSize - 1) / PageSize

	p := &Page{Page: n, TotalPages: pages, Total: total}
	start := (n - 1) * PageSize
	if start >= total {
		return p
	}
	end := min(start+PageSize, total)
	p.Orders = orders[start:end]
	return p
}
