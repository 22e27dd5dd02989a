package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const defaultMaxBody = 1 << 20

// badRequestError is a malformed or unreadable request.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: fmt.Sprintf(format, args...)}
}

// readObject decodes a JSON object body, calling fn for every field.
func (h *Handler) readObject(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return badRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return badRequest("failed to read request body")
	}
	if len(raw) == 0 {
		return badRequest("request body is required")
	}
	if err := jx.DecodeBytes(raw).Obj(fn); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return badRequest("invalid JSON body: %s", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// Money is encoded as a JSON number without losing precision.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

// decodeMoney accepts both 1200 and "1200".
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, badRequest("invalid amount %q", s)
		}
		return v, nil
	}

	num, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	v, err := decimal.NewFromString(num.String())
	if err != nil {
		return decimal.Zero, badRequest("invalid amount %s", num)
	}
	return v, nil
}

func decodeNullMoney(d *jx.Decoder) (decimal.NullDecimal, error) {
	if d.Next() == jx.Null {
		return decimal.NullDecimal{}, d.Null()
	}
	v, err := decodeMoney(d)
	return decimal.NullDecimal{Decimal: v, Valid: err == nil}, err
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	if d.Next() == jx.Null {
		return out, d.Null()
	}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func decodeNullInt(d *jx.Decoder) (*int, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeNullTime(d *jx.Decoder) (*time.Time, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, badRequest("invalid timestamp %q, want RFC 3339", s)
	}
	return &t, nil
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeNullTime(e *jx.Encoder, t *time.Time) {
	if t == nil {
		e.Null()
		return
	}
	encodeTime(e, *t)
}

func encodeNullStr(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}
