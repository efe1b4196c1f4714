package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type BotMetrics struct {
	trades           *prometheus.CounterVec
	tradeDuration    *prometheus.HistogramVec
	callbacks        *prometheus.CounterVec
	callbacksDropped *prometheus.CounterVec
}

var (
	botMetricsOnce sync.Once
	botRegistry    *BotMetrics
)

// Bot 懒加载并注册到默认Registry
func Bot() *BotMetrics {
	botMetricsOnce.Do(func() {
		botRegistry = &BotMetrics{
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "genie",
				Subsystem: "swap",
				Name:      "trades_total",
				Help:      "Total trades segmented by side and outcome.",
			}, []string{"side", "outcome"}),
			tradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "genie",
				Subsystem: "swap",
				Name:      "trade_duration_seconds",
				Help:      "Time from trade request to confirmation.",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
			}, []string{"side"}),
			callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "genie",
				Subsystem: "telebot",
				Name:      "callbacks_total",
				Help:      "Callback queries dispatched segmented by kind.",
			}, []string{"kind"}),
			callbacksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "genie",
				Subsystem: "telebot",
				Name:      "callbacks_dropped_total",
				Help:      "Callback queries dropped segmented by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			botRegistry.trades,
			botRegistry.tradeDuration,
			botRegistry.callbacks,
			botRegistry.callbacksDropped,
		)
	})
	return botRegistry
}

func (m *BotMetrics) ObserveTrade(side, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side, outcome).Inc()
	m.tradeDuration.WithLabelValues(side).Observe(seconds)
}

func (m *BotMetrics) ObserveCallback(kind string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(kind).Inc()
}

func (m *BotMetrics) ObserveDroppedCallback(reason string) {
	if m == nil {
		return
	}
	m.callbacksDropped.WithLabelValues(reason).Inc()
}
