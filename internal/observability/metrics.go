package observability

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values for outbound calls.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	// RelayTotal counts update relays to command endpoints by outcome.
	RelayTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botnorrea_relay_total",
			Help: "Telegram updates relayed to registered command endpoints.",
		},
		[]string{"outcome"},
	)

	// RelayLatency records relay POST duration in seconds.
	RelayLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "botnorrea_relay_duration_seconds",
			Help:    "Duration of relay POSTs to command endpoints.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// TelegramCallsTotal counts Bot API calls by method and outcome.
	TelegramCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botnorrea_telegram_calls_total",
			Help: "Calls made to the Telegram Bot API.",
		},
		[]string{"method", "outcome"},
	)

	// UpdatesTotal counts inbound updates by the stage that finished them.
	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "botnorrea_updates_total",
			Help: "Inbound Telegram updates by terminal dispatch stage.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(RelayTotal, RelayLatency, TelegramCallsTotal, UpdatesTotal)
}
