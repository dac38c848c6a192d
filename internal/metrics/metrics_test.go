package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Applications.WithLabelValues(OutcomeDiscounted).Inc()
	m.Applications.WithLabelValues(OutcomeNoDiscount).Add(2)
	m.Redemptions.WithLabelValues(OutcomeNotRedeemable).Inc()
	m.DiscountTotal.Add(12.5)
	m.ImportedCoupons.WithLabelValues(ImportCreated).Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Applications.WithLabelValues(OutcomeDiscounted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Applications.WithLabelValues(OutcomeNoDiscount)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Redemptions.WithLabelValues(OutcomeNotRedeemable)))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.DiscountTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ImportedCoupons.WithLabelValues(ImportCreated)))

	// Registering twice on the same registry must fail
	assert.Panics(t, func() { New(reg) })
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.Redemptions.WithLabelValues(OutcomeDiscounted).Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	Handler(reg).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `coupon_engine_redemptions_total{outcome="discounted"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
