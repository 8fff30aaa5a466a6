package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// EncodeFields writes the line's fields into an open object. The server id is
// not included.
func (l Line) EncodeFields(e *jx.Encoder) {
	e.FieldStart("productId")
	e.Str(l.ProductID)
	e.FieldStart("name")
	e.Str(l.Name)
	e.FieldStart("price")
	e.Num(jx.Num(l.Price.String()))
	e.FieldStart("quantity")
	e.Int(l.Quantity)
	e.FieldStart("weight")
	e.Str(l.Weight)
	e.FieldStart("image")
	e.Str(l.Image)
	e.FieldStart("variantIndex")
	e.Int(l.VariantIndex)
	e.FieldStart("weightIndex")
	e.Int(l.WeightIndex)

	optStr := func(name, v string) {
		if v == "" {
			return
		}
		e.FieldStart(name)
		e.Str(v)
	}
	optStr("category", l.Category)
	optStr("district", l.District)
	optStr("description", l.Description)
	optStr("subtitle", l.Subtitle)
}

// Encode writes the line as a JSON object, including serverId when set.
func (l Line) Encode(e *jx.Encoder) {
	e.ObjStart()
	l.EncodeFields(e)
	if l.ServerID != "" {
		e.FieldStart("serverId")
		e.Str(l.ServerID)
	}
	e.ObjEnd()
}

// Decode reads a line object. The server id is accepted as "serverId" or
// "_id"; price is accepted as a number or a numeric string. Unknown fields
// are skipped.
func (l *Line) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = decodeString(d)
		case "name":
			l.Name, err = decodeString(d)
		case "image":
			l.Image, err = decodeString(d)
		case "category":
			l.Category, err = decodeString(d)
		case "district":
			l.District, err = decodeString(d)
		case "description":
			l.Description, err = decodeString(d)
		case "subtitle":
			l.Subtitle, err = decodeString(d)
		case "weight":
			l.Weight, err = decodeString(d)
		case "price":
			l.Price, err = DecodeDecimal(d)
		case "quantity":
			l.Quantity, err = decodeInt(d)
		case "variantIndex":
			l.VariantIndex, err = decodeInt(d)
		case "weightIndex":
			l.WeightIndex, err = decodeInt(d)
		case "serverId", "_id":
			l.ServerID, err = decodeString(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

// EncodeLines writes lines as a JSON array.
func EncodeLines(lines []Line) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.ArrStart()
	for _, l := range lines {
		l.Encode(e)
	}
	e.ArrEnd()
	return append([]byte(nil), e.Bytes()...)
}

// DecodeLines reads a JSON array of lines. Quantities are clamped into range.
func DecodeLines(data []byte) ([]Line, error) {
	var lines []Line
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	if err := d.Arr(func(d *jx.Decoder) error {
		var l Line
		if err := l.Decode(d); err != nil {
			return err
		}
		l.Quantity = ClampQuantity(l.Quantity)
		lines = append(lines, l)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode lines")
	}
	return lines, nil
}

// DecodeDecimal reads a JSON number or numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeInt(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return 0, err
		}
		return int(v.IntPart()), nil
	default:
		return d.Int()
	}
}
