package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/shopfront-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/shopfront-backend/pkg/auth"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	incr map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, incr: map[string]int64{}}
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (m *memoryStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incr[scope]++
	return m.incr[scope] <= limit, m.incr[scope], nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return "", "", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error {
	return nil
}

type stubOrderService struct {
	mu      sync.Mutex
	creates int
}

func (s *stubOrderService) Create(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return &orders.OrderDTO{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrderService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, nil
}

func (s *stubOrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	return &orders.OrderDTO{ID: orderID, UserID: userID}, nil
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error { return nil }

type stubSigner struct{}

func (stubSigner) SigningSecret() string { return "whsec_test" }

type stubGuard struct{}

func (stubGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) { return false, nil }

func (stubGuard) Release(ctx context.Context, eventID string) error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", FrontendURL: "http://localhost:5173"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "shopfront", ExpirationMinutes: 10},
	}
}

func newTestRouter(t *testing.T, ordersSvc *stubOrderService) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	handler := NewRouter(Params{
		Config:             cfg,
		DB:                 stubPinger{},
		Redis:              newMemoryStore(),
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Sessions:           stubSessionManager{},
		Orders:             ordersSvc,
		StripeWebhooks:     stubWebhookService{},
		StripeSigner:       stubSigner{},
		StripeWebhookGuard: stubGuard{},
	})
	return handler, cfg
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func do(handler http.Handler, method, target, auth, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterRegistersEveryRoute(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrderService{})
	mux, ok := handler.(chi.Routes)
	require.True(t, ok)

	registered := map[string]bool{}
	require.NoError(t, chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		registered[method+" "+strings.TrimSuffix(strings.ReplaceAll(route, "/*/", "/"), "/")] = true
		return nil
	}))

	expected := []string{
		"GET /health/live",
		"GET /health/ready",
		"GET /metrics",
		"POST /api/auth/register",
		"POST /api/auth/login",
		"POST /api/auth/refresh",
		"POST /api/auth/logout",
		"GET /api/auth/profile",
		"GET /api/categories",
		"GET /api/categories/{id}",
		"GET /api/categories/slug/{slug}",
		"POST /api/categories",
		"PATCH /api/categories/{id}",
		"DELETE /api/categories/{id}",
		"GET /api/products",
		"GET /api/products/{id}",
		"POST /api/products",
		"PATCH /api/products/{id}",
		"DELETE /api/products/{id}",
		"POST /api/products/{id}/variants",
		"PATCH /api/products/variants/{variantId}/stock",
		"GET /api/cart",
		"DELETE /api/cart",
		"POST /api/cart/items",
		"PATCH /api/cart/items/{id}",
		"DELETE /api/cart/items/{id}",
		"POST /api/orders",
		"GET /api/orders",
		"GET /api/orders/{id}",
		"POST /api/payments/create-payment-intent",
		"GET /api/payments/status/{orderId}",
		"POST /api/payments/webhook",
	}
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
}

func TestRouterPublicRoutes(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrderService{})

	rec := do(handler, http.MethodGet, "/", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(handler, http.MethodGet, "/health/ready", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(handler, http.MethodGet, "/metrics", "", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestRouterRequiresBearer(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrderService{})

	for _, target := range []string{"/api/cart", "/api/orders", "/api/auth/profile"} {
		rec := do(handler, http.MethodGet, target, "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
	}
}

func TestRouterAdminMutationsNeedAdminRole(t *testing.T) {
	handler, cfg := newTestRouter(t, &stubOrderService{})

	rec := do(handler, http.MethodPost, "/api/products", "", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(handler, http.MethodPost, "/api/products", bearer(t, cfg, enums.RoleUser), `{}`, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(handler, http.MethodDelete, "/api/categories/"+uuid.NewString(), bearer(t, cfg, enums.RoleUser), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterOrderCreateIsIdempotent(t *testing.T) {
	ordersSvc := &stubOrderService{}
	handler, cfg := newTestRouter(t, ordersSvc)
	auth := bearer(t, cfg, enums.RoleUser)

	rec := do(handler, http.MethodPost, "/api/orders", auth, "", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, ordersSvc.creates)

	headers := map[string]string{"Idempotency-Key": "order-attempt-1"}
	first := do(handler, http.MethodPost, "/api/orders", auth, "", headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := do(handler, http.MethodPost, "/api/orders", auth, "", headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 2, ordersSvc.creates)
}

func TestRouterWebhookSkipsAuth(t *testing.T) {
	handler, _ := newTestRouter(t, &stubOrderService{})

	rec := do(handler, http.MethodPost, "/api/payments/webhook", "", `{"id":"evt_1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing signature is a validation error, not an auth error")
}
