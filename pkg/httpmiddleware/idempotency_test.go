package httpmiddleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIdempotencyStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemIdempotencyStore() *memIdempotencyStore {
	return &memIdempotencyStore{data: map[string][]byte{}}
}

func (m *memIdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memIdempotencyStore) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memIdempotencyStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memIdempotencyStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// countingHandler creates an order-like resource on every call.
type countingHandler struct {
	calls  int
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(`{"call":` + string(rune('0'+h.calls)) + `,"echo":` + string(body) + `}`))
}

func postOrder(h http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

	first := postOrder(h, "order-1", `{"a":1}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := postOrder(h, "order-1", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, next.calls)

	third := postOrder(h, "order-2", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, 2, next.calls)
}

func TestIdempotency_DifferentBody(t *testing.T) {
	next := &countingHandler{status: http.StatusCreated}
	h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

	postOrder(h, "order-1", `{"a":1}`)
	w := postOrder(h, "order-1", `{"a":2}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "different request body")
	assert.Equal(t, 1, next.calls)
}

func TestIdempotency_InFlight(t *testing.T) {
	store := newMemIdempotencyStore()
	next := &countingHandler{status: http.StatusCreated}
	h := Idempotency(IdempotencyConfig{Store: store})(next)

	key := "idempotency:POST:/api/orders:order-1"
	_, err := store.SetNX(context.Background(), key, encodeRecord(idempotencyRecord{
		Pending:     true,
		RequestHash: hashRequest([]byte(`{"a":1}`)),
	}), time.Minute)
	require.NoError(t, err)

	w := postOrder(h, "order-1", `{"a":1}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Zero(t, next.calls)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	next := &countingHandler{status: http.StatusInternalServerError}
	h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

	postOrder(h, "order-1", `{"a":1}`)
	next.status = http.StatusCreated
	w := postOrder(h, "order-1", `{"a":1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, next.calls)
}

func TestIdempotency_ClientErrorIsStored(t *testing.T) {
	next := &countingHandler{status: http.StatusBadRequest}
	h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

	postOrder(h, "order-1", `{}`)
	w := postOrder(h, "order-1", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 1, next.calls)
}

func TestIdempotency_MissingKey(t *testing.T) {
	t.Run("optional", func(t *testing.T) {
		next := &countingHandler{status: http.StatusCreated}
		h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

		postOrder(h, "", `{}`)
		postOrder(h, "", `{}`)
		assert.Equal(t, 2, next.calls)
	})
	t.Run("required", func(t *testing.T) {
		next := &countingHandler{status: http.StatusCreated}
		h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore(), Required: true})(next)

		w := postOrder(h, "", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"code":400,"message":"Idempotency-Key header required"}`, w.Body.String())
		assert.Zero(t, next.calls)
	})
	t.Run("too long", func(t *testing.T) {
		next := &countingHandler{status: http.StatusCreated}
		h := Idempotency(IdempotencyConfig{Store: newMemIdempotencyStore()})(next)

		w := postOrder(h, strings.Repeat("k", 200), `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// endlessBody yields 'x' forever and counts what was read.
type endlessBody struct{ read int64 }

func (b *endlessBody) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'x'
	}
	b.read += int64(len(p))
	return len(p), nil
}

func TestIdempotency_BodyLimit(t *testing.T) {
	store := newMemIdempotencyStore()
	next := &countingHandler{status: http.StatusCreated}
	h := Idempotency(IdempotencyConfig{Store: store, MaxBodyBytes: 1024})(next)

	body := &endlessBody{}
	req := httptest.NewRequest(http.MethodPost, "/api/orders", body)
	req.Header.Set(IdempotencyHeader, "order-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Less(t, body.read, int64(64<<10), "body must not be drained")
	assert.Zero(t, next.calls)
	assert.Empty(t, store.data, "no reservation for rejected request")

	w = postOrder(h, "order-2", `{"a":1}`)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestIdempotencyRecord_Codec(t *testing.T) {
	rec := idempotencyRecord{
		RequestHash: "abc",
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"order_number":"RL1"}`),
	}
	got, err := decodeRecord(encodeRecord(rec))
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	_, err = decodeRecord([]byte("nope"))
	assert.Error(t, err)
}
