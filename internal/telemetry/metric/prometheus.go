package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cwa-verification/tanserver/internal/core/domain"
)

const namespace = "tanserver"

// Registry holds all application metrics. It implements service.Recorder.
type Registry struct {
	reg *prometheus.Registry

	// TAN lifecycle
	tansIssued     *prometheus.CounterVec
	tansRedeemed   *prometheus.CounterVec
	redeemRejected *prometheus.CounterVec
	genCollisions  *prometheus.CounterVec
	genExhausted   *prometheus.CounterVec
	teletanLimited prometheus.Counter
	labRequests    *prometheus.CounterVec

	// HTTP
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry with the Go and process collectors and
// every application metric registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		reg: reg,
		tansIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tan_issued_total",
			Help:      "TANs issued, by type",
		}, []string{"type"}),
		tansRedeemed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tan_redeemed_total",
			Help:      "TANs redeemed, by type",
		}, []string{"type"}),
		redeemRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tan_redeem_rejected_total",
			Help:      "Redemption attempts that did not redeem, by reason",
		}, []string{"reason"}),
		genCollisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tan_generation_collisions_total",
			Help:      "Generated candidates whose hash was already stored",
		}, []string{"type"}),
		genExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tan_generation_exhausted_total",
			Help:      "Issuances that ran out of generation attempts",
		}, []string{"type"}),
		teletanLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "teletan_rate_limited_total",
			Help:      "TeleTAN issuances refused by the issuance budget",
		}),
		labRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lab_requests_total",
			Help:      "Lab result lookups, by outcome",
		}, []string{"result"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route, method and status code",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		r.tansIssued,
		r.tansRedeemed,
		r.redeemRejected,
		r.genCollisions,
		r.genExhausted,
		r.teletanLimited,
		r.labRequests,
		r.requestsTotal,
		r.requestDuration,
	)
	return r
}

// Registerer exposes the underlying registry for components that add
// their own metrics, such as the Badger store.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// ObserveRequest records one served HTTP request.
func (r *Registry) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	r.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.requestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Recorder events.

func (r *Registry) TanIssued(typ domain.TanType) {
	r.tansIssued.WithLabelValues(string(typ)).Inc()
}

func (r *Registry) TanRedeemed(typ domain.TanType) {
	r.tansRedeemed.WithLabelValues(string(typ)).Inc()
}

func (r *Registry) RedeemRejected(reason string) {
	r.redeemRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) GenerationCollision(typ domain.TanType) {
	r.genCollisions.WithLabelValues(string(typ)).Inc()
}

func (r *Registry) GenerationExhausted(typ domain.TanType) {
	r.genExhausted.WithLabelValues(string(typ)).Inc()
}

func (r *Registry) TeleTanRateLimited() {
	r.teletanLimited.Inc()
}

func (r *Registry) LabResult(result string) {
	r.labRequests.WithLabelValues(result).Inc()
}
