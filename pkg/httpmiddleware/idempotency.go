package httpmiddleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client-chosen idempotency key.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKey = 128

// IdempotencyStore persists idempotency records. Get reports ok=false when
// no record exists. SetNX stores only if the key is absent.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// IdempotencyConfig configures the Idempotency middleware.
type IdempotencyConfig struct {
	Store IdempotencyStore
	// TTL is how long a completed response is replayed.
	TTL time.Duration
	// LockTTL bounds how long an in-flight reservation blocks retries.
	LockTTL time.Duration
	// Required rejects requests without the header.
	Required bool
	// MaxBodyBytes caps the buffered request body. Defaults to 1 MiB.
	MaxBodyBytes int64
}

type idempotencyRecord struct {
	Pending     bool
	RequestHash string
	Status      int
	ContentType string
	Body        []byte
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The first request with a key reserves it. A concurrent retry gets 409,
// a retry with a different body gets 422. Responses with status 5xx are
// not stored, so the client may retry them.
func Idempotency(cfg IdempotencyConfig) Middleware {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			lg := zctx.From(ctx)

			idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if idemKey == "" {
				if cfg.Required {
					writeError(w, http.StatusBadRequest, "Idempotency-Key header required")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if len(idemKey) > maxIdempotencyKey {
				writeError(w, http.StatusBadRequest, "Idempotency-Key header too long")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes))
			if err != nil {
				if _, ok := errors.Into[*http.MaxBytesError](err); ok {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashRequest(body)
			key := "idempotency:" + r.Method + ":" + r.URL.Path + ":" + idemKey

			reserved, err := cfg.Store.SetNX(ctx, key, encodeRecord(idempotencyRecord{
				Pending:     true,
				RequestHash: hash,
			}), cfg.LockTTL)
			if err != nil {
				lg.Error("Reserve idempotency key", zap.Error(err))
				writeError(w, http.StatusInternalServerError, "server error")
				return
			}
			if !reserved {
				replay(ctx, w, cfg.Store, key, hash)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			if status >= http.StatusInternalServerError {
				if err := cfg.Store.Del(ctx, key); err != nil {
					lg.Warn("Release idempotency key", zap.Error(err))
				}
				return
			}

			final := encodeRecord(idempotencyRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := cfg.Store.Set(context.WithoutCancel(ctx), key, final, cfg.TTL); err != nil {
				lg.Warn("Persist idempotency record", zap.Error(err))
			}
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, store IdempotencyStore, key, hash string) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil {
		zctx.From(ctx).Error("Load idempotency record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	if !ok {
		// Reservation expired or was released between SetNX and Get.
		writeError(w, http.StatusConflict, "request with this Idempotency-Key is in progress")
		return
	}

	record, err := decodeRecord(raw)
	if err != nil {
		zctx.From(ctx).Error("Decode idempotency record", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	switch {
	case record.RequestHash != hash:
		writeError(w, http.StatusUnprocessableEntity, "Idempotency-Key reused with a different request body")
	case record.Pending:
		writeError(w, http.StatusConflict, "request with this Idempotency-Key is in progress")
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func hashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func encodeRecord(rec idempotencyRecord) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("pending")
	e.Bool(rec.Pending)
	e.FieldStart("request_hash")
	e.Str(rec.RequestHash)
	if !rec.Pending {
		e.FieldStart("status")
		e.Int(rec.Status)
		e.FieldStart("content_type")
		e.Str(rec.ContentType)
		e.FieldStart("body")
		e.Base64(rec.Body)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeRecord(raw []byte) (idempotencyRecord, error) {
	var rec idempotencyRecord
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "pending":
			rec.Pending, err = d.Bool()
		case "request_hash":
			rec.RequestHash, err = d.Str()
		case "status":
			rec.Status, err = d.Int()
		case "content_type":
			rec.ContentType, err = d.Str()
		case "body":
			rec.Body, err = d.Base64()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return rec, errors.Wrap(err, "decode idempotency record")
	}
	return rec, nil
}

// responseCapture tees the response into a buffer.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *responseCapture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(p []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// writeError writes the {code,message} JSON error body used by the API.
func writeError(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
