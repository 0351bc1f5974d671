package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeSnapshot parses the JSON form of a snapshot:
//
//	{"id":"...","table_name":"T4","table_number":4,"server_name":"Ann","covers":2,
//	 "created_at":"2025-06-15T12:00:00Z","paid_at":null,
//	 "items":[{"name":"Burger","qty":2,"price":"12.50","note":"","category":"food"}],
//	 "subtotal":"25.00","tax_total":"2.50","service_charge":"0","discount_total":"0","total":"27.50",
//	 "payment_method":"card","outlet_name":"Main St"}
//
// Money may be a JSON string or number. Unknown fields are ignored. The
// decoded snapshot is validated before it is returned.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s, err := decodeSnapshot(jx.DecodeBytes(data))
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate snapshot")
	}
	return s, nil
}

// DecodeSnapshots parses either a single snapshot object or an array of them.
func DecodeSnapshots(data []byte) ([]*Snapshot, error) {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Array {
		s, err := DecodeSnapshot(data)
		if err != nil {
			return nil, err
		}
		return []*Snapshot{s}, nil
	}

	var out []*Snapshot
	if err := d.Arr(func(d *jx.Decoder) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		s, err := DecodeSnapshot(raw)
		if err != nil {
			return errors.Wrapf(err, "snapshot %d", len(out))
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode snapshots")
	}
	return out, nil
}

func decodeSnapshot(d *jx.Decoder) (*Snapshot, error) {
	var s Snapshot
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ID, err = d.Str()
		case "table_name":
			s.TableName, err = d.Str()
		case "table_number":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var n int
			n, err = d.Int()
			s.TableNumber = &n
		case "server_name":
			s.ServerName, err = d.Str()
		case "covers":
			s.Covers, err = d.Int()
		case "created_at":
			s.CreatedAt, err = decodeTime(d)
		case "paid_at":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var t time.Time
			t, err = decodeTime(d)
			s.PaidAt = &t
		case "items":
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return errors.Wrapf(err, "item %d", len(s.Items))
				}
				s.Items = append(s.Items, it)
				return nil
			})
		case "subtotal":
			s.Subtotal, err = decodeMoney(d)
		case "tax_total":
			s.TaxTotal, err = decodeMoney(d)
		case "service_charge":
			s.ServiceCharge, err = decodeMoney(d)
		case "discount_total":
			s.DiscountTotal, err = decodeMoney(d)
		case "total":
			s.Total, err = decodeMoney(d)
		case "payment_method":
			s.PaymentMethod, err = decodeOptStr(d)
		case "outlet_name":
			s.OutletName, err = decodeOptStr(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &s, nil
}

func decodeItem(d *jx.Decoder) (LineItem, error) {
	var it LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			it.Name, err = d.Str()
		case "qty":
			it.Qty, err = d.Int()
		case "price":
			it.Price, err = decodeMoney(d)
		case "note":
			it.Note, err = decodeOptStr(d)
		case "category":
			var c string
			c, err = decodeOptStr(d)
			it.Category = Category(c)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return it, err
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for amount", d.Next())
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse amount %q", raw)
	}
	return v, nil
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse time %q", s)
	}
	return t, nil
}

func decodeOptStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
