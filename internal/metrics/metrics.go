// Package metrics exposes engine activity as Prometheus series.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/efreitasn/simexchange/internal/domain"
	"github.com/efreitasn/simexchange/internal/engine"
)

const namespace = "simexchange"

// Recorder implements engine.Metrics on a private registry. A nil
// *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	orders       *prometheus.CounterVec
	trades       *prometheus.CounterVec
	volume       *prometheus.CounterVec
	skipped      *prometheus.CounterVec
	failed       *prometheus.CounterVec
	injected     *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	wsClients    prometheus.Gauge
	httpRequests *prometheus.CounterVec
}

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_total",
			Help:      "Orders submitted, by ticker and resulting status.",
		}, []string{"ticker", "status"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Settled trades, by ticker and whether a synthetic order took part.",
		}, []string{"ticker", "synthetic"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_shares_total",
			Help:      "Shares exchanged in settled trades.",
		}, []string{"ticker"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_skipped_total",
			Help:      "Pairings not settled because a party could not cover them.",
		}, []string{"ticker", "reason"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_failures_total",
			Help:      "Settlements aborted by a persistence error.",
		}, []string{"ticker"}),
		injected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liquidity_injections_total",
			Help:      "Synthetic counter-orders created for human orders.",
		}, []string{"ticker"}),
		lastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_price",
			Help:      "Price of the most recent trade.",
		}, []string{"ticker"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_clients",
			Help:      "Connected trade feed subscribers.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status code.",
		}, []string{"method", "code"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.orders, r.trades, r.volume, r.skipped, r.failed,
		r.injected, r.lastPrice, r.wsClients, r.httpRequests,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) OrderPlaced(ticker string, status engine.OrderStatus) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(ticker, string(status)).Inc()
}

func (r *Recorder) TradeSettled(t domain.Trade) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(t.Ticker, strconv.FormatBool(t.Synthetic)).Inc()
	r.volume.WithLabelValues(t.Ticker).Add(float64(t.Quantity))
	r.lastPrice.WithLabelValues(t.Ticker).Set(float64(t.Price))
}

func (r *Recorder) SettlementSkipped(ticker string, reason error) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(ticker, reasonLabel(reason)).Inc()
}

func (r *Recorder) SettlementFailed(ticker string) {
	if r == nil {
		return
	}
	r.failed.WithLabelValues(ticker).Inc()
}

func (r *Recorder) OrderInjected(ticker string) {
	if r == nil {
		return
	}
	r.injected.WithLabelValues(ticker).Inc()
}

// FeedClients sets the number of connected trade feed subscribers.
func (r *Recorder) FeedClients(n int) {
	if r == nil {
		return
	}
	r.wsClients.Set(float64(n))
}

// HTTPRequest counts one served request.
func (r *Recorder) HTTPRequest(method string, code int) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrInsufficientShares):
		return "insufficient_shares"
	}
	return "other"
}
