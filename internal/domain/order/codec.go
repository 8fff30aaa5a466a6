package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pandam-storefront/internal/domain/cart"
	"github.com/xenking/pandam-storefront/internal/domain/checkout"
)

// Encode writes the item as a JSON object.
func (i Item) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("productId")
	e.Str(i.ProductID)
	e.FieldStart("name")
	e.Str(i.Name)
	e.FieldStart("price")
	e.Num(jx.Num(i.Price.String()))
	e.FieldStart("quantity")
	e.Int(i.Quantity)
	e.FieldStart("weight")
	e.Str(i.Weight)
	e.FieldStart("image")
	e.Str(i.Image)
	e.FieldStart("variantIndex")
	e.Int(i.VariantIndex)
	e.FieldStart("weightIndex")
	e.Int(i.WeightIndex)
	e.ObjEnd()
}

// Decode reads an item object, reusing the tolerant cart line decoder.
func (i *Item) Decode(d *jx.Decoder) error {
	var l cart.Line
	if err := l.Decode(d); err != nil {
		return err
	}
	*i = Item{
		ProductID:    l.ProductID,
		Name:         l.Name,
		Price:        l.Price,
		Quantity:     l.Quantity,
		Weight:       l.Weight,
		Image:        l.Image,
		VariantIndex: l.VariantIndex,
		WeightIndex:  l.WeightIndex,
	}
	return nil
}

// Encode writes the address in backend shape.
func (a Address) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(a.Name)
	e.FieldStart("street")
	e.Str(a.Street)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("state")
	e.Str(a.State)
	e.FieldStart("postalCode")
	e.Str(a.PostalCode)
	e.FieldStart("phone")
	e.Str(a.Phone)
	e.FieldStart("email")
	e.Str(a.Email)
	e.ObjEnd()
}

func (a *Address) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var dst *string
		switch key {
		case "name":
			dst = &a.Name
		case "street":
			dst = &a.Street
		case "city":
			dst = &a.City
		case "state":
			dst = &a.State
		case "postalCode":
			dst = &a.PostalCode
		case "phone":
			dst = &a.Phone
		case "email":
			dst = &a.Email
		default:
			return d.Skip()
		}
		if err := decodeStr(d, dst); err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// Encode writes only the detail that is set; COD yields an empty object.
func (p PaymentDetails) Encode(e *jx.Encoder) {
	e.ObjStart()
	if p.CardLast4 != "" {
		e.FieldStart("cardLast4")
		e.Str(p.CardLast4)
	}
	if p.UPIID != "" {
		e.FieldStart("upiId")
		e.Str(p.UPIID)
	}
	if p.Bank != "" {
		e.FieldStart("bank")
		e.Str(p.Bank)
	}
	e.ObjEnd()
}

func (p *PaymentDetails) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "cardLast4":
			return decodeStr(d, &p.CardLast4)
		case "upiId":
			return decodeStr(d, &p.UPIID)
		case "bank":
			return decodeStr(d, &p.Bank)
		default:
			return d.Skip()
		}
	})
}

// EncodeFields writes the order fields into an open object.
func (o Order) EncodeFields(e *jx.Encoder) {
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		it.Encode(e)
	}
	e.ArrEnd()
	e.FieldStart("shippingAddress")
	o.ShippingAddress.Encode(e)
	e.FieldStart("totalAmount")
	e.Num(jx.Num(o.TotalAmount.String()))
	e.FieldStart("paymentDetails")
	o.PaymentDetails.Encode(e)
}

// Encode writes the submission payload.
func (o Order) Encode(e *jx.Encoder) {
	e.ObjStart()
	o.EncodeFields(e)
	e.ObjEnd()
}

// decodeField reads one of the order's own fields. ok is false for keys that
// are not order fields.
func (o *Order) decodeField(d *jx.Decoder, key string) (ok bool, err error) {
	switch key {
	case "paymentMethod":
		var s string
		err = decodeStr(d, &s)
		o.PaymentMethod = checkout.Method(s)
	case "items":
		o.Items = o.Items[:0]
		err = d.Arr(func(d *jx.Decoder) error {
			var it Item
			if err := it.Decode(d); err != nil {
				return err
			}
			o.Items = append(o.Items, it)
			return nil
		})
	case "shippingAddress":
		err = o.ShippingAddress.Decode(d)
	case "totalAmount":
		o.TotalAmount, err = cart.DecodeDecimal(d)
	case "paymentDetails":
		err = o.PaymentDetails.Decode(d)
	default:
		return false, nil
	}
	return true, err
}

// Encode writes the placed order with its backend id under "_id".
func (p Placed) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("_id")
	e.Str(p.ID)
	e.FieldStart("status")
	e.Str(string(p.Status))
	if !p.CreatedAt.IsZero() {
		e.FieldStart("createdAt")
		e.Str(p.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	p.EncodeFields(e)
	e.ObjEnd()
}

// Decode reads a placed order. The id is accepted as "_id" or "id".
func (p *Placed) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "_id", "id":
			err = decodeStr(d, &p.ID)
		case "status":
			var s string
			err = decodeStr(d, &s)
			p.Status = Status(s)
		case "createdAt":
			var s string
			if err = decodeStr(d, &s); err == nil && s != "" {
				p.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			var ok bool
			if ok, err = p.Order.decodeField(d, key); !ok {
				return d.Skip()
			}
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// DecodePlaced reads a single placed order document.
func DecodePlaced(data []byte) (*Placed, error) {
	var p Placed
	if err := p.Decode(jx.DecodeBytes(data)); err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return &p, nil
}

// EncodePlaced serializes p.
func EncodePlaced(p Placed) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	p.Encode(e)
	return append([]byte(nil), e.Bytes()...)
}

// Decode reads the order submission reply. A "message" field is used as the
// error text when "error" is absent.
func (r *Response) Decode(d *jx.Decoder) error {
	var message string
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			if d.Next() == jx.Null {
				return d.Null()
			}
			r.Success, err = d.Bool()
		case "order":
			if d.Next() == jx.Null {
				return d.Null()
			}
			r.Order = new(Placed)
			err = r.Order.Decode(d)
		case "error":
			err = decodeStr(d, &r.Error)
		case "message":
			err = decodeStr(d, &message)
		case "inventoryUpdate":
			if d.Next() == jx.Null {
				return d.Null()
			}
			r.InventoryUpdate = new(InventoryUpdate)
			err = r.InventoryUpdate.Decode(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if r.Error == "" {
		r.Error = message
	}
	return err
}

func (u *InventoryUpdate) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "failed":
			if d.Next() == jx.Null {
				return d.Null()
			}
			n, err := d.Int()
			u.Failed = n
			return err
		case "details":
			raw, err := d.Raw()
			if err != nil {
				return err
			}
			u.Details = append(jx.Raw(nil), raw...)
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}
