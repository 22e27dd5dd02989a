package admin

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rastalife/storefront/internal/domain/order"
)

type mockUsers struct {
	users map[string]*User
	err   error
}

func (m *mockUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *mockUsers) Upsert(_ context.Context, u *User) error {
	m.users[u.Username] = u
	return nil
}

var testTokenConfig = TokenConfig{
	Secret: "0123456789abcdef0123456789abcdef",
	Issuer: "storefront-admin",
	TTL:    time.Hour,
}

func newTestAuthenticator(t *testing.T, now time.Time) *Authenticator {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &mockUsers{users: map[string]*User{
		"admin": {ID: "u1", Username: "admin", PasswordHash: string(hash)},
	}}
	a, err := NewAuthenticator(users, testTokenConfig)
	require.NoError(t, err)
	a.now = func() time.Time { return now }
	return a
}

func TestAuthenticator_LoginAndVerify(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(t, now)

	s, err := a.Login(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), s.ExpiresAt)

	claims, err := a.Verify(s.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "storefront-admin", claims.Issuer)
}

func TestAuthenticator_LoginRejects(t *testing.T) {
	a := newTestAuthenticator(t, time.Now())

	tests := []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "correct-horse"},
		{"", "correct-horse"},
		{"admin", ""},
	}
	for _, tt := range tests {
		_, err := a.Login(context.Background(), tt.user, tt.pass)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "%s/%s", tt.user, tt.pass)
	}
}

func TestAuthenticator_LoginStoreError(t *testing.T) {
	a, err := NewAuthenticator(&mockUsers{err: errors.New("db down")}, testTokenConfig)
	require.NoError(t, err)

	_, err = a.Login(context.Background(), "admin", "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticator_VerifyRejects(t *testing.T) {
	issuedAt := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	a := newTestAuthenticator(t, issuedAt)
	s, err := a.Login(context.Background(), "admin", "correct-horse")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		a.now = func() time.Time { return issuedAt.Add(2 * time.Hour) }
		defer func() { a.now = func() time.Time { return issuedAt } }()

		_, err := a.Verify(s.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Verify("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewAuthenticator(&mockUsers{}, TokenConfig{
			Secret: "ffffffffffffffffffffffffffffffff",
			Issuer: testTokenConfig.Issuer,
			TTL:    time.Hour,
		})
		require.NoError(t, err)
		other.now = a.now

		_, err = other.Verify(s.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			Username: "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    testTokenConfig.Issuer,
				ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
			},
		})
		raw, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = a.Verify(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewAuthenticator_Config(t *testing.T) {
	_, err := NewAuthenticator(&mockUsers{}, TokenConfig{Secret: "short", Issuer: "x", TTL: time.Hour})
	assert.Error(t, err)
	_, err = NewAuthenticator(&mockUsers{}, TokenConfig{Secret: testTokenConfig.Secret, TTL: time.Hour})
	assert.Error(t, err)
	_, err = NewAuthenticator(&mockUsers{}, TokenConfig{Secret: testTokenConfig.Secret, Issuer: "x"})
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short")
	require.Error(t, err)

	hash, err := HashPassword("long enough secret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("long enough secret")))
}

type mockProductCounter struct {
	n   int
	err error
}

func (m *mockProductCounter) Count(_ context.Context) (int, error) { return m.n, m.err }

type mockOrderStats struct {
	byStatus map[order.Status]int
	sum      decimal.Decimal
	sumErr   error
}

func (m *mockOrderStats) CountByStatus(_ context.Context) (map[order.Status]int, error) {
	return m.byStatus, nil
}

func (m *mockOrderStats) SumTotals(_ context.Context, status order.Status) (decimal.Decimal, error) {
	if status != order.StatusDelivered {
		return decimal.Zero, errors.Errorf("unexpected status %s", status)
	}
	return m.sum, m.sumErr
}

func TestDashboard_Stats(t *testing.T) {
	dash := NewDashboard(&mockProductCounter{n: 42}, &mockOrderStats{
		byStatus: map[order.Status]int{
			order.StatusPending:   3,
			order.StatusApproved:  2,
			order.StatusDelivered: 5,
			order.StatusCancelled: 1,
		},
		sum: decimal.RequireFromString("15240.40"),
	})

	s, err := dash.Stats(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 42, s.TotalProducts)
	assert.Equal(t, 11, s.TotalOrders)
	assert.Equal(t, 3, s.PendingOrders)
	assert.Equal(t, 5, s.DeliveredOrders)
	assert.True(t, decimal.NewFromInt(15240).Equal(s.TotalSales))
}

func TestDashboard_StatsError(t *testing.T) {
	dash := NewDashboard(&mockProductCounter{err: errors.New("boom")}, &mockOrderStats{})

	_, err := dash.Stats(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "count products")
}
