package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"bookstore-orders/internal/logger"
	"bookstore-orders/internal/models"
	handlers "bookstore-orders/internal/payment/handler"
)

// MockStore is a mock implementation of the storage.Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) SavePayment(payment *models.Payment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockStore) GetPayment(id string) (*models.Payment, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockStore) UpdatePayment(payment *models.Payment) error {
	args := m.Called(payment)
	return args.Error(0)
}

func (m *MockStore) UpdatePaymentStatusByOrder(orderID string, status models.PaymentRecordStatus) error {
	args := m.Called(orderID, status)
	return args.Error(0)
}

func (m *MockStore) ListPayments(orderID string, limit, offset int) ([]*models.Payment, error) {
	args := m.Called(orderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

func (m *MockStore) GetPaymentByOrderID(orderID string) (*models.Payment, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) HealthCheck() error {
	args := m.Called()
	return args.Error(0)
}

// bearerToken builds a signed JWT carrying the given realm roles. The payment
// router only reads claims; the signature itself is never checked there.
func bearerToken(t *testing.T, sub string, roles ...string) string {
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
		"realm_access": map[string]interface{}{
			"roles": roles,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return "Bearer " + signed
}

func newRouter(store *MockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := handlers.NewPaymentHandler(nil, store, nil, logger.NewLogger())
	return h.Router()
}

func TestGetByOrderAuth(t *testing.T) {
	t.Run("missing token is unauthorized", func(t *testing.T) {
		router := newRouter(new(MockStore))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/order-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("customer token is forbidden", func(t *testing.T) {
		router := newRouter(new(MockStore))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/order-1", nil)
		req.Header.Set("Authorization", bearerToken(t, "user-1", "user"))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("staff token reads the payment", func(t *testing.T) {
		store := new(MockStore)
		store.On("GetPaymentByOrderID", "order-1").Return(&models.Payment{
			PaymentID: "pay-1",
			OrderID:   "order-1",
			Status:    models.PaymentRecordSucceeded,
			Amount:    50.0,
		}, nil)
		router := newRouter(store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/order-1", nil)
		req.Header.Set("Authorization", bearerToken(t, "staff-1", "staff"))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pay-1")
		store.AssertExpectations(t)
	})
}

func TestListByOrderAuth(t *testing.T) {
	t.Run("malformed header is unauthorized", func(t *testing.T) {
		router := newRouter(new(MockStore))

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/order-1/history", nil)
		req.Header.Set("Authorization", "Token abc")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("admin token lists the history", func(t *testing.T) {
		store := new(MockStore)
		store.On("ListPayments", "order-1", 20, 0).Return([]*models.Payment{
			{PaymentID: "pay-1", OrderID: "order-1", Status: models.PaymentRecordFailed},
			{PaymentID: "pay-2", OrderID: "order-1", Status: models.PaymentRecordSucceeded},
		}, nil)
		router := newRouter(store)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/order-1/history", nil)
		req.Header.Set("Authorization", bearerToken(t, "admin-1", "admin"))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "pay-2")
		store.AssertExpectations(t)
	})
}
