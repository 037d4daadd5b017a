package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingmodule "github.com/dualspace/memberd/modules/billing"
	billingpkg "github.com/dualspace/memberd/pkg/billing"
	"github.com/dualspace/memberd/pkg/entitlement"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) EnsureCustomer(ctx context.Context, params billingpkg.CustomerParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreateCheckoutSession(ctx context.Context, params billingpkg.CheckoutParams) (*billingpkg.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingpkg.CheckoutSession), args.Error(1)
}

func (m *mockProvider) ParseWebhook(payload []byte, signature string) (*billingpkg.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billingpkg.Event), args.Error(1)
}

type testEnv struct {
	router   http.Handler
	provider *mockProvider
	store    *entitlement.MemoryStore
	buyer    entitlement.User
	pack     entitlement.Product
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := entitlement.NewMemoryStore()
	buyer := entitlement.User{ID: uuid.New(), Email: "buyer@example.com"}
	store.AddUser(buyer)

	pack := entitlement.Product{
		ID:      uuid.New(),
		Name:    "Mobility Pack",
		Space:   entitlement.SpaceAdults,
		Type:    entitlement.ProductPack,
		PriceID: "price_pack",
		Price:   4900,
		Active:  true,
	}
	store.AddProduct(pack)

	provider := &mockProvider{}
	svc := entitlement.NewService(provider, store.Users(), store.Products(), store.Purchases(), store.Subscriptions())

	router := billingmodule.Router(billingmodule.RouterOptions{
		Service:  svc,
		Provider: provider,
		CurrentUser: func(r *http.Request) (uuid.UUID, error) {
			raw := r.Header.Get("X-Test-User")
			if raw == "" {
				return uuid.Nil, errors.New("no session")
			}
			return uuid.Parse(raw)
		},
	})

	return &testEnv{router: router, provider: provider, store: store, buyer: buyer, pack: pack}
}

func (e *testEnv) post(t *testing.T, path string, body any, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	if userID != "" {
		req.Header.Set("X-Test-User", userID)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_CreateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("returns checkout url", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		env.provider.On("EnsureCustomer", mock.Anything, mock.Anything).Return("cus_1", nil).Once()
		env.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&billingpkg.CheckoutSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil).Once()

		rec := env.post(t, "/checkout", map[string]any{
			"product_id": env.pack.ID,
		}, env.buyer.ID.String())

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			URL string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "https://pay.example.com/cs_1", resp.URL)
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		rec := env.post(t, "/checkout", map[string]any{"product_id": env.pack.ID}, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects missing product id", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		rec := env.post(t, "/checkout", map[string]any{}, env.buyer.ID.String())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown product is not found", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		rec := env.post(t, "/checkout", map[string]any{"product_id": uuid.New()}, env.buyer.ID.String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("mode mismatch is unprocessable", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		rec := env.post(t, "/checkout", map[string]any{
			"product_id":   env.pack.ID,
			"subscription": true,
		}, env.buyer.ID.String())
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("provider outage is a bad gateway", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		env.provider.On("EnsureCustomer", mock.Anything, mock.Anything).Return("cus_1", nil).Once()
		env.provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(nil, errors.New("provider down")).Once()

		rec := env.post(t, "/checkout", map[string]any{"product_id": env.pack.ID}, env.buyer.ID.String())
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestRouter_CheckAccess(t *testing.T) {
	t.Parallel()

	t.Run("reports locked and unlocked state", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		get := func(productID string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/access/"+productID, nil)
			req.Header.Set("X-Test-User", env.buyer.ID.String())
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			return rec
		}

		rec := get(env.pack.ID.String())
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Unlocked bool `json:"unlocked"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Unlocked)

		_, err := env.store.Purchases().Record(context.Background(), entitlement.Purchase{
			ID:          uuid.New(),
			UserID:      env.buyer.ID,
			ProductID:   env.pack.ID,
			Status:      entitlement.PurchasePaid,
			ProviderRef: "pi_1",
			Space:       entitlement.SpaceAdults,
		})
		require.NoError(t, err)

		rec = get(env.pack.ID.String())
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Unlocked)
	})

	t.Run("unknown product is not found", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		req := httptest.NewRequest(http.MethodGet, "/access/"+uuid.NewString(), nil)
		req.Header.Set("X-Test-User", env.buyer.ID.String())
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_HandleWebhook(t *testing.T) {
	t.Parallel()

	postWebhook := func(env *testEnv, payload, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader([]byte(payload)))
		req.Header.Set("Stripe-Signature", signature)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("rejects unverifiable payload", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		env.provider.On("ParseWebhook", []byte("{}"), "bad-sig").
			Return(nil, billingpkg.ErrWebhookVerificationFailed).Once()

		rec := postWebhook(env, "{}", "bad-sig")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("acknowledges reconciled event", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		event := &billingpkg.Event{
			ID:         "evt_1",
			Type:       billingpkg.EventCheckoutCompleted,
			OccurredAt: time.Now().UTC(),
			Checkout: &billingpkg.CheckoutInfo{
				SessionID:  "cs_1",
				Mode:       billingpkg.ModePayment,
				CustomerID: "cus_1",
				PaymentRef: "pi_123",
				Metadata: map[string]string{
					entitlement.MetadataUserID:    env.buyer.ID.String(),
					entitlement.MetadataProductID: env.pack.ID.String(),
					entitlement.MetadataSpace:     "adults",
				},
			},
		}
		env.provider.On("ParseWebhook", mock.Anything, "good-sig").Return(event, nil).Once()

		rec := postWebhook(env, `{"id":"evt_1"}`, "good-sig")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, env.store.PurchaseFacts(), 1)
	})

	t.Run("acknowledges unhandled event types", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		event := &billingpkg.Event{ID: "evt_2", Type: billingpkg.EventUnknown, ProviderType: "invoice.paid"}
		env.provider.On("ParseWebhook", mock.Anything, "good-sig").Return(event, nil).Once()

		rec := postWebhook(env, `{"id":"evt_2"}`, "good-sig")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("store failure asks for redelivery", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		router := billingmodule.Router(billingmodule.RouterOptions{
			Service:     failingService{},
			Provider:    env.provider,
			CurrentUser: func(r *http.Request) (uuid.UUID, error) { return uuid.Nil, errors.New("unused") },
		})

		event := &billingpkg.Event{ID: "evt_3", Type: billingpkg.EventCheckoutCompleted}
		env.provider.On("ParseWebhook", mock.Anything, "good-sig").Return(event, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("Stripe-Signature", "good-sig")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

type failingService struct{}

func (failingService) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, req entitlement.CheckoutRequest) (string, error) {
	return "", fmt.Errorf("store unavailable")
}

func (failingService) HandleEvent(ctx context.Context, event *billingpkg.Event) error {
	return fmt.Errorf("store unavailable")
}

func (failingService) IsUnlocked(ctx context.Context, userID, productID uuid.UUID) (bool, error) {
	return false, fmt.Errorf("store unavailable")
}
