package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/internal/metrics"
	"github.com/dmitrymomot/notifykit/pkg/channels"
	"github.com/dmitrymomot/notifykit/pkg/fanout"
)

func TestObserveNotify(t *testing.T) {
	m := metrics.New("test")
	m.ObserveNotify(&fanout.Summary{Type: "order_shipped", Recipients: []string{"a", "b"}, Persisted: true, Pushed: 3})
	m.ObserveNotify(&fanout.Summary{Type: "order_shipped"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("order_shipped", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("order_shipped", "false")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PushedTotal))
}

func TestObserveOutcome(t *testing.T) {
	m := metrics.New("test")
	ding := channels.Channel{Kind: channels.KindDingTalk}
	sms := channels.Channel{Kind: channels.KindTencentSMS}

	m.ObserveOutcome(fanout.Outcome{Channel: ding, Duration: 20 * time.Millisecond})
	m.ObserveOutcome(fanout.Outcome{Channel: ding, Err: errors.New("boom")})
	m.ObserveOutcome(fanout.Outcome{Channel: sms, Result: channels.Result{Attempted: 3, Delivered: 1}})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("dingtalk", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("dingtalk", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues(string(channels.KindTencentSMS), "partial")))
}

func TestConnectionsAndIntake(t *testing.T) {
	m := metrics.New("test")
	m.SetConnections(4)
	m.SetConnections(2)
	m.ObserveIntake("ok")
	m.ObserveIntake("rejected")
	m.ObserveIntake("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IntakeTotal.WithLabelValues("ok")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New("test")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/api/items/{id}", "GET", "418")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := metrics.New("test")
	m.SetConnections(1)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_realtime_connections 1")
	assert.Contains(t, string(body), "go_goroutines")
}
