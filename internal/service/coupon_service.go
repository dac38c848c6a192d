package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"coupon-engine/internal/events"
	"coupon-engine/internal/metrics"
	"coupon-engine/internal/model"
	"coupon-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxCodeLength = 64

	defaultPageSize = 10
	maxPageSize     = 100
)

// couponService implements CouponService.
type couponService struct {
	couponRepo repository.CouponRepository
	publisher  events.Publisher
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	now        func() time.Time
	logger     zerolog.Logger
}

// NewCouponService creates a new coupon service.
func NewCouponService(
	couponRepo repository.CouponRepository,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) CouponService {
	return &couponService{
		couponRepo: couponRepo,
		publisher:  publisher,
		metrics:    m,
		tracer:     otel.Tracer("coupon-engine/service"),
		now:        time.Now,
		logger:     logger.With().Str("service", "coupon").Logger(),
	}
}

// Create validates the attributes and stores a new coupon.
func (s *couponService) Create(ctx context.Context, req *model.CreateCouponRequest) (*model.Coupon, error) {
	ctx, span := s.tracer.Start(ctx, "CouponService.Create")
	defer span.End()

	if err := s.validateCreateRequest(req); err != nil {
		s.logger.Warn().Err(err).Msg("invalid coupon attributes")
		return nil, err
	}

	now := s.now().UTC()
	coupon := &model.Coupon{
		ID:              uuid.New(),
		Code:            strings.TrimSpace(req.Code),
		Description:     strings.TrimSpace(req.Description),
		DiscountType:    req.DiscountType,
		DiscountValue:   req.DiscountValue,
		RedemptionLimit: req.RedemptionLimit,
		ValidFrom:       req.ValidFrom,
		ExpiresAt:       req.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	span.SetAttributes(attribute.String("coupon.code", coupon.Code))

	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("create"))
	err := s.couponRepo.Create(ctx, coupon)
	timer.ObserveDuration()

	if err != nil {
		var validationErr *model.ValidationError
		switch {
		case errors.Is(err, model.ErrCouponCodeTaken):
			s.logger.Warn().Str("code", coupon.Code).Msg("coupon code already exists")
			return nil, err
		case errors.As(err, &validationErr):
			s.logger.Warn().Err(err).Str("code", coupon.Code).Msg("coupon rejected by store")
			return nil, err
		}

		s.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to create coupon")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	s.logger.Info().
		Str("coupon_id", coupon.ID.String()).
		Str("code", coupon.Code).
		Str("discount_type", string(coupon.DiscountType)).
		Float64("discount_value", coupon.DiscountValue).
		Msg("coupon created successfully")

	return coupon, nil
}

// GetByCode retrieves a coupon by its exact code.
func (s *couponService) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		s.logger.Debug().Msg("coupon code is empty")
		return nil, nil
	}

	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("get_by_code"))
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	timer.ObserveDuration()

	if err != nil {
		s.logger.Error().Err(err).Str("code", code).Msg("failed to get coupon")
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	if coupon == nil {
		s.logger.Debug().Str("code", code).Msg("coupon not found")
		return nil, nil
	}

	return coupon, nil
}

// FindValidByCode retrieves a coupon only if it is redeemable now.
// It is the single gate used by Apply and Redeem.
func (s *couponService) FindValidByCode(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := s.GetByCode(ctx, code)
	if err != nil || coupon == nil {
		return nil, err
	}

	now := s.now()
	if !coupon.Redeemable(now) {
		s.logger.Debug().
			Str("code", coupon.Code).
			Bool("started", coupon.Started(now)).
			Bool("expired", coupon.Expired(now)).
			Int("redemption_count", coupon.RedemptionCount).
			Msg("coupon is not redeemable")
		return nil, nil
	}

	return coupon, nil
}

// Apply computes the discount for an amount without recording usage.
func (s *couponService) Apply(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error) {
	ctx, span := s.tracer.Start(ctx, "CouponService.Apply", trace.WithAttributes(
		attribute.String("coupon.code", code),
	))
	defer span.End()

	if err := validatePricingRequest(req); err != nil {
		return nil, err
	}

	result := model.NewPricingResult(req)

	coupon, err := s.FindValidByCode(ctx, code)
	if err != nil {
		s.metrics.Applications.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to apply coupon: %w", err)
	}

	if coupon == nil {
		s.metrics.Applications.WithLabelValues(metrics.OutcomeNoDiscount).Inc()
		return result, nil
	}

	applyDiscount(coupon, result)
	s.metrics.Applications.WithLabelValues(metrics.OutcomeDiscounted).Inc()
	span.SetAttributes(attribute.Float64("coupon.discount", result.Discount))

	return result, nil
}

// Redeem applies the coupon and records one redemption.
func (s *couponService) Redeem(ctx context.Context, code string, req *model.PricingRequest) (*model.PricingResult, error) {
	ctx, span := s.tracer.Start(ctx, "CouponService.Redeem", trace.WithAttributes(
		attribute.String("coupon.code", code),
	))
	defer span.End()

	if err := validatePricingRequest(req); err != nil {
		return nil, err
	}

	result := model.NewPricingResult(req)

	coupon, err := s.FindValidByCode(ctx, code)
	if err != nil {
		s.metrics.Redemptions.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}

	if coupon == nil {
		s.metrics.Redemptions.WithLabelValues(metrics.OutcomeNoDiscount).Inc()
		return result, nil
	}

	now := s.now().UTC()
	redemption := &model.Redemption{
		ID:        uuid.New(),
		CouponID:  coupon.ID,
		UserID:    req.UserID,
		OrderID:   req.OrderID,
		CreatedAt: now,
	}

	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("record_redemption"))
	err = s.couponRepo.RecordRedemption(ctx, coupon, redemption, now)
	timer.ObserveDuration()

	if err != nil {
		if errors.Is(err, model.ErrCouponNotRedeemable) {
			// Another redemption took the last slot, or the window closed, after the lookup.
			s.logger.Info().Str("code", coupon.Code).Msg("coupon no longer redeemable at write time")
			s.metrics.Redemptions.WithLabelValues(metrics.OutcomeNotRedeemable).Inc()
			return result, nil
		}

		var persistenceErr *model.PersistenceError
		if !errors.As(err, &persistenceErr) {
			err = &model.PersistenceError{Op: "record redemption", Err: err}
		}

		s.logger.Error().
			Err(err).
			Str("code", coupon.Code).
			Str("redemption_id", redemption.ID.String()).
			Msg("failed to record redemption")
		s.metrics.Redemptions.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	applyDiscount(coupon, result)

	s.metrics.Redemptions.WithLabelValues(metrics.OutcomeDiscounted).Inc()
	s.metrics.DiscountTotal.Add(result.Discount)
	span.SetAttributes(
		attribute.String("redemption.id", redemption.ID.String()),
		attribute.Float64("coupon.discount", result.Discount),
	)

	s.logger.Info().
		Str("code", coupon.Code).
		Str("redemption_id", redemption.ID.String()).
		Int("redemption_count", coupon.RedemptionCount).
		Float64("discount", result.Discount).
		Msg("coupon redeemed successfully")

	s.publishRedemption(ctx, coupon, redemption, result)

	return result, nil
}

// publishRedemption emits the redemption event. The redemption is already
// committed, so failures are logged and counted only.
func (s *couponService) publishRedemption(
	ctx context.Context,
	coupon *model.Coupon,
	redemption *model.Redemption,
	result *model.PricingResult,
) {
	event := &events.RedemptionEvent{
		Type:         events.EventTypeCouponRedeemed,
		RedemptionID: redemption.ID,
		CouponID:     coupon.ID,
		Code:         coupon.Code,
		UserID:       redemption.UserID,
		OrderID:      redemption.OrderID,
		Amount:       result.Amount,
		Discount:     result.Discount,
		Total:        result.Total,
		RedeemedAt:   redemption.CreatedAt,
	}

	if err := s.publisher.PublishRedemption(context.WithoutCancel(ctx), event); err != nil {
		s.metrics.EventFailures.Inc()
		s.logger.Warn().
			Err(err).
			Str("code", coupon.Code).
			Str("redemption_id", redemption.ID.String()).
			Msg("failed to publish redemption event")
	}
}

// List retrieves coupons with pagination.
func (s *couponService) List(ctx context.Context, limit, offset int) ([]model.Coupon, error) {
	limit, offset = normalisePage(limit, offset)

	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("list"))
	coupons, err := s.couponRepo.List(ctx, limit, offset)
	timer.ObserveDuration()

	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to list coupons")
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}

	s.logger.Debug().
		Int("count", len(coupons)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved coupons")

	return coupons, nil
}

// ListRedemptions retrieves the redemptions of a coupon with pagination.
func (s *couponService) ListRedemptions(ctx context.Context, code string, limit, offset int) ([]model.Redemption, error) {
	coupon, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, model.ErrCouponNotFound
	}

	limit, offset = normalisePage(limit, offset)

	timer := prometheus.NewTimer(s.metrics.StoreLatency.WithLabelValues("list_redemptions"))
	redemptions, err := s.couponRepo.ListRedemptions(ctx, coupon.ID, limit, offset)
	timer.ObserveDuration()

	if err != nil {
		s.logger.Error().Err(err).Str("code", coupon.Code).Msg("failed to list redemptions")
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}

	return redemptions, nil
}

// validateCreateRequest checks coupon attributes before they reach the store.
func (s *couponService) validateCreateRequest(req *model.CreateCouponRequest) error {
	if req == nil {
		return &model.ValidationError{Message: "coupon request is nil"}
	}

	code := strings.TrimSpace(req.Code)
	switch {
	case code == "":
		return &model.ValidationError{Field: "code", Message: "is required"}
	case len(code) > maxCodeLength:
		return &model.ValidationError{Field: "code", Message: fmt.Sprintf("must be at most %d characters", maxCodeLength)}
	case strings.IndexFunc(code, unicode.IsSpace) >= 0:
		return &model.ValidationError{Field: "code", Message: "must not contain whitespace"}
	}

	if !req.DiscountType.Valid() {
		return &model.ValidationError{
			Field: "discountType",
			Message: fmt.Sprintf("must be %q or %q",
				model.DiscountTypePercentage, model.DiscountTypeFixedAmount),
		}
	}

	switch {
	case math.IsNaN(req.DiscountValue) || math.IsInf(req.DiscountValue, 0):
		return &model.ValidationError{Field: "discountValue", Message: "must be a finite number"}
	case req.DiscountValue < 0:
		return &model.ValidationError{Field: "discountValue", Message: "must not be negative"}
	case req.DiscountType == model.DiscountTypePercentage && req.DiscountValue > 100:
		return &model.ValidationError{Field: "discountValue", Message: "must not exceed 100 for percentage coupons"}
	}

	if req.RedemptionLimit != nil && *req.RedemptionLimit < 0 {
		return &model.ValidationError{Field: "redemptionLimit", Message: "must not be negative"}
	}

	if req.ValidFrom != nil && req.ExpiresAt != nil && !req.ValidFrom.Before(*req.ExpiresAt) {
		return &model.ValidationError{Field: "expiresAt", Message: "must be after validFrom"}
	}

	return nil
}

func validatePricingRequest(req *model.PricingRequest) error {
	if req == nil {
		return &model.ValidationError{Message: "pricing request is nil"}
	}
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return &model.ValidationError{Field: "amount", Message: "must be a finite number"}
	}
	if req.Amount < 0 {
		return &model.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	return nil
}

// applyDiscount fills in discount and total. Apply and Redeem both use it.
func applyDiscount(coupon *model.Coupon, result *model.PricingResult) {
	result.Discount = coupon.Discount(result.Amount)
	result.Total = result.Amount - result.Discount
}

func normalisePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
