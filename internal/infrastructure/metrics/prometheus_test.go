package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/domain"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.BidAccepted("new")
	c.BidAccepted("new")
	c.BidAccepted("raise")
	c.BidRejected("bid_too_low")
	c.OfferDeleted(domain.CascadeResult{BidsDeleted: 2, NotificationsDeleted: 1, OfferDeleted: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.bidsAccepted.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bidsAccepted.WithLabelValues("raise")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.bidsRejected.WithLabelValues("bid_too_low")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.offersDeleted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cascadeRows.WithLabelValues("bid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cascadeRows.WithLabelValues("notification")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.BidAccepted("new")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_bids_accepted_total{kind="new"} 1`)
}
