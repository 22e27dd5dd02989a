package redisstore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rastalife/storefront/internal/domain/cart"
)

const cartPrefix = "cart"

var _ cart.Store = (*CartStore)(nil)

// CartStore persists carts as JSON documents that expire after a period of
// inactivity. Every Save refreshes the expiry.
type CartStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewCartStore creates a CartStore. A non-positive ttl keeps carts forever.
func NewCartStore(rdb redis.Cmdable, ttl time.Duration) *CartStore {
	if ttl < 0 {
		ttl = 0
	}
	return &CartStore{rdb: rdb, ttl: ttl}
}

// Get returns cart.ErrNotFound for unknown or expired carts.
func (s *CartStore) Get(ctx context.Context, id string) (*cart.Cart, error) {
	raw, err := s.rdb.Get(ctx, buildKey(cartPrefix, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get cart %s", id)
	}

	c, err := decodeCart(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cart %s", id)
	}
	return c, nil
}

func (s *CartStore) Save(ctx context.Context, c *cart.Cart) error {
	if err := s.rdb.Set(ctx, buildKey(cartPrefix, c.ID), encodeCart(c), s.ttl).Err(); err != nil {
		return errors.Wrapf(err, "set cart %s", c.ID)
	}
	return nil
}

func (s *CartStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, buildKey(cartPrefix, id)).Err(); err != nil {
		return errors.Wrapf(err, "delete cart %s", id)
	}
	return nil
}

func encodeCart(c *cart.Cart) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("updated_at")
	e.Str(c.UpdatedAt.UTC().Format(time.RFC3339Nano))
	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range c.Lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("title")
		e.Str(l.Title)
		e.FieldStart("unit_price")
		e.Str(l.UnitPrice.String())
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("size")
		e.Str(l.Size)
		e.FieldStart("colors")
		e.ArrStart()
		for _, color := range l.Colors {
			e.Str(color)
		}
		e.ArrEnd()
		e.FieldStart("image")
		e.Str(l.Image)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

func decodeCart(raw []byte) (*cart.Cart, error) {
	var c cart.Cart
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			c.ID = v
			return err
		case "updated_at":
			v, err := d.Str()
			if err != nil {
				return err
			}
			c.UpdatedAt, err = time.Parse(time.RFC3339Nano, v)
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return err
				}
				c.Lines = append(c.Lines, l)
				return nil
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeLine(d *jx.Decoder) (cart.Line, error) {
	var l cart.Line
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			l.ProductID, err = d.Str()
		case "title":
			l.Title, err = d.Str()
		case "unit_price":
			var v string
			if v, err = d.Str(); err == nil {
				l.UnitPrice, err = decimal.NewFromString(v)
			}
		case "quantity":
			l.Quantity, err = d.Int()
		case "size":
			l.Size, err = d.Str()
		case "colors":
			err = d.Arr(func(d *jx.Decoder) error {
				color, err := d.Str()
				l.Colors = append(l.Colors, color)
				return err
			})
		case "image":
			l.Image, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}
