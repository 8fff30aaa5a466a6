package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
	"github.com/xenking/pandam-storefront/internal/domain/notify"
	"github.com/xenking/pandam-storefront/internal/domain/order"
	"github.com/xenking/pandam-storefront/internal/domain/pricing"
	"github.com/xenking/pandam-storefront/internal/domain/session"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func readJSON(r *http.Request, fn func(d *jx.Decoder) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if err := fn(jx.DecodeBytes(body)); err != nil {
		return errors.Wrap(err, "decode body")
	}
	return nil
}

func num(e *jx.Encoder, name string, v interface{ String() string }) {
	e.FieldStart(name)
	e.Num(jx.Num(v.String()))
}

func timeField(e *jx.Encoder, name string, t time.Time) {
	e.FieldStart(name)
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.FieldStart("totals")
	e.ObjStart()
	num(e, "subtotal", t.Subtotal)
	num(e, "deliveryFee", t.DeliveryFee)
	num(e, "total", t.Total)
	e.ObjEnd()
}

func encodeLines(e *jx.Encoder, lines []cart.Line) {
	e.FieldStart("items")
	e.ArrStart()
	for _, l := range lines {
		l.Encode(e)
	}
	e.ArrEnd()
}

func encodeCart(e *jx.Encoder, lines []cart.Line, table pricing.FeeTable) {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	e.ObjStart()
	encodeLines(e, lines)
	e.FieldStart("count")
	e.Int(count)
	encodeTotals(e, pricing.Compute(lines, table))
	e.ObjEnd()
}

func encodeSession(e *jx.Encoder, deviceID string, u session.User, signedIn bool) {
	e.ObjStart()
	e.FieldStart("deviceId")
	e.Str(deviceID)
	e.FieldStart("authenticated")
	e.Bool(signedIn)
	if signedIn {
		e.FieldStart("user")
		e.ObjStart()
		e.FieldStart("id")
		e.Str(u.ID)
		e.FieldStart("email")
		e.Str(u.Email)
		e.FieldStart("name")
		e.Str(u.Name)
		e.ObjEnd()
	}
	e.ObjEnd()
}

func encodeNotifications(e *jx.Encoder, items []notify.Notification) {
	e.ObjStart()
	e.FieldStart("notifications")
	e.ArrStart()
	for _, n := range items {
		e.ObjStart()
		e.FieldStart("level")
		e.Str(string(n.Level))
		e.FieldStart("message")
		e.Str(n.Message)
		timeField(e, "at", n.At)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

func encodeCheckout(e *jx.Encoder, co *order.Coordinator) {
	state, err := co.State()
	cd := co.Countdown()

	e.ObjStart()
	e.FieldStart("id")
	e.Str(co.ID())
	e.FieldStart("state")
	e.Str(string(state))
	e.FieldStart("direct")
	e.Bool(co.Direct())
	e.FieldStart("remainingSeconds")
	e.Int(int(cd.Remaining() / time.Second))
	e.FieldStart("clock")
	e.Str(cd.Clock())
	e.FieldStart("expired")
	e.Bool(cd.Expired())
	timeField(e, "deadline", cd.Deadline())
	encodeLines(e, co.Lines())
	encodeTotals(e, co.Totals())
	if err != nil {
		e.FieldStart("error")
		e.Str(userMessage(err))
	}
	if res, ok := co.Result(); ok {
		e.FieldStart("result")
		encodeResult(e, res)
	}
	e.ObjEnd()
}

func encodeResult(e *jx.Encoder, res *order.Result) {
	e.ObjStart()
	e.FieldStart("order")
	res.Order.Encode(e)
	e.FieldStart("confirmation")
	encodeConfirmation(e, res.Confirmation)
	e.FieldStart("warning")
	e.Bool(res.Warning())
	e.FieldStart("inventoryFailed")
	e.Int(res.InventoryFailed)
	e.ObjEnd()
}

func encodeConfirmation(e *jx.Encoder, c order.Confirmation) {
	e.ObjStart()
	e.FieldStart("orderNumber")
	e.Str(c.OrderNumber)
	e.FieldStart("paymentStatus")
	e.Str(c.PaymentStatus)
	timeField(e, "estimatedShipping", c.EstimatedShipping)
	timeField(e, "estimatedDelivery", c.EstimatedDelivery)
	encodeTotals(e, c.Totals)
	e.ObjEnd()
}

func encodePage(e *jx.Encoder, p *order.Page) {
	e.ObjStart()
	e.FieldStart("orders")
	e.ArrStart()
	for _, o := range p.Orders {
		o.Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("page")
	e.Int(p.Page)
	e.FieldStart("totalPages")
	e.Int(p.TotalPages)
	e.FieldStart("total")
	e.Int(p.Total)
	e.ObjEnd()
}

func encodeFieldErrors(e *jx.Encoder, msg string, errs checkout.Errors) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnprocessableEntity)
	e.FieldStart("message")
	e.Str(msg)
	e.FieldStart("fields")
	e.ArrStart()
	for _, f := range errs.Fields() {
		e.Str(string(f))
	}
	e.ArrEnd()
	e.ObjEnd()
}

// decodeForm reads the flat checkout form the storefront posts.
func decodeForm(d *jx.Decoder) (checkout.Form, error) {
	var (
		form checkout.Form
		pay  checkout.PaymentFields
	)
	fields := map[string]*string{
		"email":         &form.Contact.Email,
		"phone":         &form.Contact.Phone,
		"name":          &form.Address.Name,
		"address":       &form.Address.Street,
		"city":          &form.Address.City,
		"state":         &form.Address.State,
		"zip":           &form.Address.Zip,
		"paymentMethod": &pay.Method,
		"upiId":         &pay.UPIID,
		"cardName":      &pay.CardName,
		"cardNumber":    &pay.CardNum,
		"expMonth":      &pay.ExpMonth,
		"expYear":       &pay.ExpYear,
		"cvv":           &pay.CVV,
		"bank":          &pay.Bank,
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return checkout.Form{}, err
	}
	form.Payment = checkout.ParsePayment(pay)
	return form, nil
}

// decodeDirect reads {"direct":[line...]}.
func decodeDirect(d *jx.Decoder) ([]cart.Line, error) {
	var lines []cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "direct" {
			return d.Skip()
		}
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
	return lines, err
}

// decodeDelta reads {"delta":n}.
func decodeDelta(d *jx.Decoder) (int, error) {
	var (
		delta int
		seen  bool
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "delta" {
			return d.Skip()
		}
		v, err := d.Int()
		if err != nil {
			return err
		}
		delta, seen = v, true
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !seen {
		return 0, errors.New("delta is required")
	}
	return delta, nil
}
