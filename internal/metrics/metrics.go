package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trader_cycles_total", Help: "Completed trading cycles"},
	)
	CycleSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "trader_cycle_seconds", Help: "Duration of a full trading cycle", Buckets: prometheus.ExponentialBuckets(1, 2, 10)},
	)
	RSI = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "trader_rsi", Help: "Latest RSI per symbol and horizon"},
		[]string{"symbol", "horizon"},
	)
	LastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "trader_last_price", Help: "Latest trade price per symbol"},
		[]string{"symbol"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_orders_total", Help: "Orders submitted"},
		[]string{"symbol", "side"},
	)
	BrokerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_broker_retries_total", Help: "Failed broker attempts that were retried or exhausted"},
		[]string{"call"},
	)
)

func init() {
	prometheus.MustRegister(CyclesTotal, CycleSeconds, RSI, LastPrice, OrdersTotal, BrokerRetries)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
