package handler

import (
	"net/http"

	"coupon-engine/internal/model"
	"coupon-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CouponHandler handles coupon-related HTTP requests.
type CouponHandler struct {
	service service.CouponService
	logger  zerolog.Logger
}

// NewCouponHandler creates a new coupon handler.
func NewCouponHandler(service service.CouponService, logger zerolog.Logger) *CouponHandler {
	return &CouponHandler{
		service: service,
		logger:  logger.With().Str("handler", "coupon").Logger(),
	}
}

// Create handles POST /api/coupons requests.
func (h *CouponHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.CreateCouponRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	coupon, err := h.service.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, "failed to create coupon", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, coupon)
}

// List handles GET /api/coupons requests.
func (h *CouponHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePagination(w, r, h.logger)
	if !ok {
		return
	}

	coupons, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve coupons", h.logger)
		return
	}

	if coupons == nil {
		coupons = []model.Coupon{}
	}

	writeJSON(w, http.StatusOK, coupons)
}

// GetByCode handles GET /api/coupons/{code} requests.
func (h *CouponHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	coupon, err := h.service.GetByCode(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve coupon", h.logger)
		return
	}

	if coupon == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeCouponNotFound, model.ErrCouponNotFound.Message, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, coupon)
}

// Apply handles POST /api/coupons/{code}/apply requests.
// Codes that cannot be used still answer 200 with a zero discount.
func (h *CouponHandler) Apply(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req model.PricingRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Apply(r.Context(), code, &req)
	if err != nil {
		writeServiceError(w, r, err, "failed to apply coupon", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Redeem handles POST /api/coupons/{code}/redeem requests.
func (h *CouponHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req model.PricingRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.service.Redeem(r.Context(), code, &req)
	if err != nil {
		writeServiceError(w, r, err, "failed to redeem coupon", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRedemptions handles GET /api/coupons/{code}/redemptions requests.
func (h *CouponHandler) ListRedemptions(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	limit, offset, ok := parsePagination(w, r, h.logger)
	if !ok {
		return
	}

	redemptions, err := h.service.ListRedemptions(r.Context(), code, limit, offset)
	if err != nil {
		writeServiceError(w, r, err, "failed to retrieve redemptions", h.logger)
		return
	}

	if redemptions == nil {
		redemptions = []model.Redemption{}
	}

	writeJSON(w, http.StatusOK, redemptions)
}
