//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	dbTotal        *prom.CounterVec
	dbSeconds      *prom.HistogramVec
	eventTotal     *prom.CounterVec
	verdictTotal   *prom.CounterVec
	budgetRefusals prom.Counter
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncEventTotal(eventType string) {
	p.eventTotal.WithLabelValues(eventType).Inc()
}

func (p *promRecorder) IncVerdict(kind string) {
	p.verdictTotal.WithLabelValues(kind).Inc()
}

func (p *promRecorder) IncBudgetRefusal() {
	p.budgetRefusals.Inc()
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_ops_total",
			Help: "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "db_op_seconds",
			Help:    "DB operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		eventTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "events_persisted_total",
			Help: "Total number of events appended to the run ledger",
		}, []string{"event_type"}),
		verdictTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "dedup_verdicts_total",
			Help: "Total number of identity resolution verdicts",
		}, []string{"verdict"}),
		budgetRefusals: prom.NewCounter(prom.CounterOpts{
			Name: "embedding_budget_refusals_total",
			Help: "Total number of embedding calls refused by the run budget",
		}),
	}

	registry.MustRegister(p.dbTotal, p.dbSeconds, p.eventTotal, p.verdictTotal, p.budgetRefusals)
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
