package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coupon-engine/internal/model"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCouponService is a mock implementation of CouponService.
type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponService) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponService) FindValidByCode(ctx context.Context, code string) (*model.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponService) Apply(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error) {
	args := m.Called(ctx, code, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PricingResult), args.Error(1)
}

func (m *MockCouponService) Redeem(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error) {
	args := m.Called(ctx, code, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PricingResult), args.Error(1)
}

func (m *MockCouponService) List(ctx context.Context, limit, offset int) ([]model.Coupon, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Coupon), args.Error(1)
}

func (m *MockCouponService) ListRedemptions(ctx context.Context, code string, limit, offset int) ([]model.Redemption, error) {
	args := m.Called(ctx, code, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Redemption), args.Error(1)
}

// withCode attaches a chi route context carrying the {code} URL parameter.
func withCode(r *http.Request, code string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("code", code)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestCouponHandler_Create(t *testing.T) {
	created := &model.Coupon{
		ID:            uuid.New(),
		Code:          "ABC123",
		DiscountType:  model.DiscountTypePercentage,
		DiscountValue: 30,
	}

	tests := []struct {
		name           string
		body           string
		mockReturn     *model.Coupon
		mockError      error
		expectService  bool
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			body:           `{"code":"ABC123","discountType":"percentage","discountValue":30,"redemptionLimit":1}`,
			mockReturn:     created,
			expectService:  true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Validation error",
			body:           `{"code":"","discountType":"percentage","discountValue":30}`,
			mockError:      &model.ValidationError{Field: "code", Message: "is required"},
			expectService:  true,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "Duplicate code",
			body:           `{"code":"ABC123","discountType":"percentage","discountValue":30}`,
			mockError:      model.ErrCouponCodeTaken,
			expectService:  true,
			expectedStatus: http.StatusConflict,
			expectedCode:   model.ErrCodeCouponCodeTaken,
		},
		{
			name:           "Store failure",
			body:           `{"code":"ABC123","discountType":"percentage","discountValue":30}`,
			mockError:      errors.New("failed to create coupon: connection reset"),
			expectService:  true,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
		},
		{
			name:           "Invalid JSON",
			body:           `not json`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCouponService)
			if tt.expectService {
				mockService.On("Create", mock.Anything, mock.AnythingOfType("*model.CreateCouponRequest")).
					Return(tt.mockReturn, tt.mockError)
			}

			handler := NewCouponHandler(mockService, zerolog.Nop())

			req := httptest.NewRequest(http.MethodPost, "/api/coupons", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			handler.Create(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			} else {
				var coupon model.Coupon
				require.NoError(t, json.NewDecoder(w.Body).Decode(&coupon))
				assert.Equal(t, created.ID, coupon.ID)
				assert.Equal(t, "ABC123", coupon.Code)
			}

			if tt.expectService {
				mockService.AssertExpectations(t)
			} else {
				mockService.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCouponHandler_GetByCode(t *testing.T) {
	coupon := &model.Coupon{ID: uuid.New(), Code: "ABC123", DiscountType: model.DiscountTypePercentage, DiscountValue: 30}

	tests := []struct {
		name           string
		code           string
		mockReturn     *model.Coupon
		mockError      error
		expectedStatus int
	}{
		{name: "Found", code: "ABC123", mockReturn: coupon, expectedStatus: http.StatusOK},
		{name: "Not found", code: "NOPE", expectedStatus: http.StatusNotFound},
		{name: "Store failure", code: "ABC123", mockError: errors.New("timeout"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCouponService)
			mockService.On("GetByCode", mock.Anything, tt.code).Return(tt.mockReturn, tt.mockError)

			handler := NewCouponHandler(mockService, zerolog.Nop())

			req := withCode(httptest.NewRequest(http.MethodGet, "/api/coupons/"+tt.code, nil), tt.code)
			w := httptest.NewRecorder()

			handler.GetByCode(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusNotFound {
				assert.Equal(t, model.ErrCodeCouponNotFound, decodeError(t, w).Error)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestCouponHandler_Apply(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockReturn     *model.PricingResult
		mockError      error
		expectService  bool
		expectedStatus int
		expectedBody   map[string]any
		expectedCode   string
	}{
		{
			name: "Discount with extra fields echoed",
			body: `{"amount":100,"currency":"EUR"}`,
			mockReturn: &model.PricingResult{
				Amount: 100, Discount: 30, Total: 70,
				Extra: map[string]any{"currency": "EUR"},
			},
			expectService:  true,
			expectedStatus: http.StatusOK,
			expectedBody:   map[string]any{"amount": 100.0, "discount": 30.0, "total": 70.0, "currency": "EUR"},
		},
		{
			name:           "Unusable code still answers 200",
			body:           `{"amount":50}`,
			mockReturn:     &model.PricingResult{Amount: 50, Discount: 0, Total: 50},
			expectService:  true,
			expectedStatus: http.StatusOK,
			expectedBody:   map[string]any{"amount": 50.0, "discount": 0.0, "total": 50.0},
		},
		{
			name:           "Missing amount",
			body:           `{"currency":"EUR"}`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "Negative amount",
			body:           `{"amount":-5}`,
			mockError:      &model.ValidationError{Field: "amount", Message: "must not be negative"},
			expectService:  true,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "Invalid JSON",
			body:           `{"amount":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Body too large",
			body:           `{"amount":10,"note":"` + strings.Repeat("x", maxBodyBytes) + `"}`,
			expectedStatus: http.StatusRequestEntityTooLarge,
			expectedCode:   model.ErrCodePayloadTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCouponService)
			if tt.expectService {
				mockService.On("Apply", mock.Anything, "ABC123", mock.AnythingOfType("*model.PricingRequest")).
					Return(tt.mockReturn, tt.mockError)
			}

			handler := NewCouponHandler(mockService, zerolog.Nop())

			req := withCode(httptest.NewRequest(http.MethodPost, "/api/coupons/ABC123/apply", bytes.NewBufferString(tt.body)), "ABC123")
			w := httptest.NewRecorder()

			handler.Apply(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != nil {
				var body map[string]any
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, tt.expectedBody, body)
			}
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, w).Error)
			}
			if !tt.expectService {
				mockService.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCouponHandler_Redeem(t *testing.T) {
	tests := []struct {
		name           string
		mockReturn     *model.PricingResult
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			mockReturn:     &model.PricingResult{Amount: 100, Discount: 30, Total: 70, UserID: strPtr("user-1")},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Persistence failure",
			mockError:      &model.PersistenceError{Op: "insert redemption", Err: errors.New("disk full")},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodePersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCouponService)
			mockService.On("Redeem", mock.Anything, "ABC123", mock.MatchedBy(func(req *model.PricingRequest) bool {
				return req.Amount == 100 && req.UserID != nil && *req.UserID == "user-1"
			})).Return(tt.mockReturn, tt.mockError)

			handler := NewCouponHandler(mockService, zerolog.Nop())

			body := `{"amount":100,"userId":"user-1"}`
			req := withCode(httptest.NewRequest(http.MethodPost, "/api/coupons/ABC123/redeem", bytes.NewBufferString(body)), "ABC123")
			w := httptest.NewRecorder()

			handler.Redeem(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				resp := decodeError(t, w)
				assert.Equal(t, tt.expectedCode, resp.Error)
				assert.NotContains(t, resp.Message, "disk full")
			} else {
				var result map[string]any
				require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
				assert.Equal(t, 30.0, result["discount"])
				assert.Equal(t, "user-1", result["userId"])
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestCouponHandler_List(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedLimit  int
		expectedOffset int
		expectService  bool
		mockReturn     []model.Coupon
		expectedStatus int
		expectedCount  int
	}{
		{name: "Defaults", query: "", expectedLimit: 10, expectedOffset: 0, expectService: true, mockReturn: []model.Coupon{{Code: "A"}, {Code: "B"}}, expectedStatus: http.StatusOK, expectedCount: 2},
		{name: "Custom page", query: "?limit=5&offset=10", expectedLimit: 5, expectedOffset: 10, expectService: true, mockReturn: []model.Coupon{{Code: "A"}}, expectedStatus: http.StatusOK, expectedCount: 1},
		{name: "Empty list", query: "", expectedLimit: 10, expectService: true, mockReturn: nil, expectedStatus: http.StatusOK, expectedCount: 0},
		{name: "Invalid limit", query: "?limit=abc", expectedStatus: http.StatusBadRequest},
		{name: "Invalid offset", query: "?offset=xyz", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockCouponService)
			if tt.expectService {
				mockService.On("List", mock.Anything, tt.expectedLimit, tt.expectedOffset).Return(tt.mockReturn, nil)
			}

			handler := NewCouponHandler(mockService, zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, "/api/coupons"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.List(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var coupons []model.Coupon
				require.NoError(t, json.NewDecoder(w.Body).Decode(&coupons))
				assert.NotNil(t, coupons)
				assert.Len(t, coupons, tt.expectedCount)
			}
			if !tt.expectService {
				mockService.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}
}

func TestCouponHandler_ListRedemptions(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		redemptions := []model.Redemption{{ID: uuid.New(), UserID: strPtr("u1")}}
		mockService := new(MockCouponService)
		mockService.On("ListRedemptions", mock.Anything, "ABC123", 10, 0).Return(redemptions, nil)

		handler := NewCouponHandler(mockService, zerolog.Nop())
		req := withCode(httptest.NewRequest(http.MethodGet, "/api/coupons/ABC123/redemptions", nil), "ABC123")
		w := httptest.NewRecorder()

		handler.ListRedemptions(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var got []model.Redemption
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Len(t, got, 1)
	})

	t.Run("Unknown coupon", func(t *testing.T) {
		mockService := new(MockCouponService)
		mockService.On("ListRedemptions", mock.Anything, "NOPE", 10, 0).Return(nil, model.ErrCouponNotFound)

		handler := NewCouponHandler(mockService, zerolog.Nop())
		req := withCode(httptest.NewRequest(http.MethodGet, "/api/coupons/NOPE/redemptions", nil), "NOPE")
		w := httptest.NewRecorder()

		handler.ListRedemptions(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, model.ErrCodeCouponNotFound, decodeError(t, w).Error)
	})
}

func TestWriteError_CorrelationID(t *testing.T) {
	h := chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "bad input", zerolog.Nop())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	resp := decodeError(t, w)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.ErrCodeValidation, resp.Error)
	assert.Equal(t, "bad input", resp.Message)
	assert.Equal(t, "req-42", resp.CorrelationID)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func strPtr(v string) *string { return &v }
