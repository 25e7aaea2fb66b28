package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/internal/payments"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/pagination"
)

type stubCartService struct {
	userID  uuid.UUID
	itemID  uuid.UUID
	added   cart.AddItemRequest
	cleared bool
	err     error
}

func (s *stubCartService) result() (*cart.CartDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cart.CartDTO{ID: uuid.New(), UserID: s.userID, Items: []cart.CartItemDTO{}}, nil
}

func (s *stubCartService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	s.userID = userID
	return s.result()
}

func (s *stubCartService) AddItem(ctx context.Context, userID uuid.UUID, req cart.AddItemRequest) (*cart.CartDTO, error) {
	s.userID = userID
	s.added = req
	return s.result()
}

func (s *stubCartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, req cart.UpdateItemRequest) (*cart.CartDTO, error) {
	s.userID, s.itemID = userID, itemID
	return s.result()
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*cart.CartDTO, error) {
	s.userID, s.itemID = userID, itemID
	return s.result()
}

func (s *stubCartService) Clear(ctx context.Context, userID uuid.UUID) (*cart.CartDTO, error) {
	s.userID = userID
	s.cleared = true
	return s.result()
}

type stubOrderService struct {
	userID uuid.UUID
	params pagination.Params
	err    error
}

func (s *stubOrderService) Create(ctx context.Context, userID uuid.UUID) (*orders.OrderDTO, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{ID: uuid.New(), UserID: userID, Status: enums.OrderStatusPending, TotalAmount: 10997}, nil
}

func (s *stubOrderService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*orders.OrderList, error) {
	s.userID = userID
	s.params = params
	return &orders.OrderList{Orders: []orders.OrderDTO{}}, s.err
}

func (s *stubOrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*orders.OrderDTO, error) {
	s.userID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &orders.OrderDTO{ID: orderID, UserID: userID}, nil
}

type stubPaymentService struct {
	req     payments.CreatePaymentIntentRequest
	orderID uuid.UUID
	err     error
}

func (s *stubPaymentService) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, req payments.CreatePaymentIntentRequest) (*payments.PaymentIntentDTO, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &payments.PaymentIntentDTO{ClientSecret: "pi_1_secret", PaymentIntentID: "pi_1"}, nil
}

func (s *stubPaymentService) GetPaymentStatus(ctx context.Context, userID, orderID uuid.UUID) (*payments.PaymentStatusDTO, error) {
	s.orderID = orderID
	if s.err != nil {
		return nil, s.err
	}
	return &payments.PaymentStatusDTO{OrderID: orderID, PaymentStatus: enums.PaymentStatusPending, OrderStatus: enums.OrderStatusPending}, nil
}

func TestCartRoutesRequireUser(t *testing.T) {
	svc := &stubCartService{}
	rec := serve(CartGet(svc, nil), newRequest(http.MethodGet, "/api/cart", ""))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, uuid.Nil, svc.userID)
}

func TestCartAddItem(t *testing.T) {
	svc := &stubCartService{}
	userID := uuid.New()
	variantID := uuid.New()
	body := `{"variantId":"` + variantID.String() + `","quantity":2}`
	rec := serve(CartAddItem(svc, nil), withUser(newRequest(http.MethodPost, "/api/cart/items", body), userID))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, userID, svc.userID)
	assert.Equal(t, variantID, svc.added.VariantID)
	assert.Equal(t, 2, svc.added.Quantity)
}

func TestCartAddItemRejectsZeroQuantity(t *testing.T) {
	svc := &stubCartService{}
	body := `{"variantId":"` + uuid.NewString() + `","quantity":0}`
	rec := serve(CartAddItem(svc, nil), withUser(newRequest(http.MethodPost, "/api/cart/items", body), uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartAddItemInsufficientStock(t *testing.T) {
	svc := &stubCartService{
		err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for TSHIRT-PREM-BLACK-M").
			WithDetails(map[string]any{"sku": "TSHIRT-PREM-BLACK-M", "available": 1, "requested": 5}),
	}
	body := `{"variantId":"` + uuid.NewString() + `","quantity":5}`
	rec := serve(CartAddItem(svc, nil), withUser(newRequest(http.MethodPost, "/api/cart/items", body), uuid.New()))

	require.Equal(t, http.StatusConflict, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, string(pkgerrors.CodeInsufficientStock), apiErr.Code)
	assert.Contains(t, apiErr.Message, "TSHIRT-PREM-BLACK-M")
	assert.NotNil(t, apiErr.Details)
}

func TestCartItemRoutesParseID(t *testing.T) {
	svc := &stubCartService{}
	userID := uuid.New()
	itemID := uuid.New()
	req := withURLParams(withUser(newRequest(http.MethodPatch, "/api/cart/items/x", `{"quantity":3}`), userID), map[string]string{"id": itemID.String()})
	rec := serve(CartUpdateItem(svc, nil), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, itemID, svc.itemID)

	req = withURLParams(withUser(newRequest(http.MethodDelete, "/api/cart/items/x", ""), userID), map[string]string{"id": "x"})
	rec = serve(CartRemoveItem(svc, nil), req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(CartClear(svc, nil), withUser(newRequest(http.MethodDelete, "/api/cart", ""), userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.cleared)
}

func TestOrderCreate(t *testing.T) {
	svc := &stubOrderService{}
	userID := uuid.New()
	rec := serve(OrderCreate(svc, nil), withUser(newRequest(http.MethodPost, "/api/orders", ""), userID))

	require.Equal(t, http.StatusCreated, rec.Code)
	var order orders.OrderDTO
	decodeData(t, rec, &order)
	assert.Equal(t, int64(10997), order.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
}

func TestOrderCreateEmptyCart(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")}
	rec := serve(OrderCreate(svc, nil), withUser(newRequest(http.MethodPost, "/api/orders", ""), uuid.New()))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "cart is empty", decodeError(t, rec).Message)
}

func TestOrderListParsesPagination(t *testing.T) {
	svc := &stubOrderService{}
	userID := uuid.New()
	rec := serve(OrderList(svc, nil), withUser(newRequest(http.MethodGet, "/api/orders?limit=5&cursor=abc", ""), userID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.params.Limit)
	assert.Equal(t, "abc", svc.params.Cursor)

	rec = serve(OrderList(svc, nil), withUser(newRequest(http.MethodGet, "/api/orders", ""), userID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pagination.DefaultLimit, svc.params.Limit)

	rec = serve(OrderList(svc, nil), withUser(newRequest(http.MethodGet, "/api/orders?limit=1000", ""), userID))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrderGet(t *testing.T) {
	svc := &stubOrderService{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	orderID := uuid.New()
	req := withURLParams(withUser(newRequest(http.MethodGet, "/api/orders/x", ""), uuid.New()), map[string]string{"id": orderID.String()})
	rec := serve(OrderGet(svc, nil), req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentCreateIntent(t *testing.T) {
	svc := &stubPaymentService{}
	orderID := uuid.New()
	body := `{"orderId":"` + orderID.String() + `"}`
	rec := serve(PaymentCreateIntent(svc, nil), withUser(newRequest(http.MethodPost, "/api/payments/create-payment-intent", body), uuid.New()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, orderID, svc.req.OrderID)

	var intent payments.PaymentIntentDTO
	decodeData(t, rec, &intent)
	assert.Equal(t, "pi_1", intent.PaymentIntentID)
	assert.Equal(t, "pi_1_secret", intent.ClientSecret)
}

func TestPaymentCreateIntentStripeDown(t *testing.T) {
	svc := &stubPaymentService{err: pkgerrors.New(pkgerrors.CodeDependency, "stripe unavailable")}
	body := `{"orderId":"` + uuid.NewString() + `"}`
	rec := serve(PaymentCreateIntent(svc, nil), withUser(newRequest(http.MethodPost, "/api/payments/create-payment-intent", body), uuid.New()))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPaymentStatus(t *testing.T) {
	svc := &stubPaymentService{}
	orderID := uuid.New()
	req := withURLParams(withUser(newRequest(http.MethodGet, "/api/payments/status/x", ""), uuid.New()), map[string]string{"orderId": orderID.String()})
	rec := serve(PaymentStatus(svc, nil), req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orderID, svc.orderID)
}
