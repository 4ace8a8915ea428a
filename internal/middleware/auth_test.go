package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/havenmind/coach-server-go/internal/model"
	"github.com/havenmind/coach-server-go/internal/util"
)

type mockAccountRepo struct {
	findByTokenHashFunc func(ctx context.Context, tokenHash string) (*model.Account, error)
}

func (m *mockAccountRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.Account, error) {
	if m.findByTokenHashFunc != nil {
		return m.findByTokenHashFunc(ctx, tokenHash)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, params model.CreateAccountParams) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) UpdateTier(ctx context.Context, id string, tier model.SubscriptionTier, subscriptionID *string) error {
	return nil
}

func (m *mockAccountRepo) SetStripeCustomerID(ctx context.Context, id string, customerID string) error {
	return nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	m := NewAuthMiddleware(&mockAccountRepo{})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	m := NewAuthMiddleware(&mockAccountRepo{
		findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Account, error) {
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	token := "valid-token"
	account := &model.Account{ID: "acct-1", Tier: model.TierFree}

	m := NewAuthMiddleware(&mockAccountRepo{
		findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Account, error) {
			if tokenHash == util.HashToken(token) {
				return account, nil
			}
			return nil, nil
		},
	})

	var seen *model.Account
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAccount(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Handler(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "acct-1", seen.ID)
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	token := "sse-token"
	account := &model.Account{ID: "acct-2"}

	m := NewAuthMiddleware(&mockAccountRepo{
		findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Account, error) {
			if tokenHash == util.HashToken(token) {
				return account, nil
			}
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/sess-1/events?token="+token, nil)
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddleware_DatabaseError(t *testing.T) {
	m := NewAuthMiddleware(&mockAccountRepo{
		findByTokenHashFunc: func(ctx context.Context, tokenHash string) (*model.Account, error) {
			return nil, errors.New("connection refused")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	rec := httptest.NewRecorder()
	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
