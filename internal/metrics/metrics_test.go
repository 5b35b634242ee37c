package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Purchase("ok")
	m.Purchase("ok")
	m.Purchase("insufficient_inventory")
	m.Refund("full")
	m.CheckIn("already_checked_in")
	m.GatewayCall("approved", 120*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.purchases.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("insufficient_inventory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refunds.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkIns.WithLabelValues("already_checked_in")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.Purchase("ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `boxoffice_purchases_total{outcome="ok"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Purchase("ok")
		m.GatewayCall("timeout", time.Second)
	})
	assert.Equal(t, "ok", Outcome(""))
	assert.Equal(t, "coupon_expired", Outcome("coupon_expired"))
}
