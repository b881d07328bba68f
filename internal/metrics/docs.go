package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache layers a payload can be served from.
const (
	LayerMemory = "memory"
	LayerStore  = "store"
	LayerFetch  = "fetch"
)

var (
	PayloadLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "applefetch",
			Name:      "payload_loads_total",
			Help:      "Payload loads by kind and the cache layer that served them",
		},
		[]string{"kind", "layer"},
	)

	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "applefetch",
			Name:      "fetch_duration_seconds",
			Help:      "Documentation API fetch duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind", "status"},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "applefetch",
			Name:      "decode_errors_total",
			Help:      "Payloads that failed to decode",
		},
		[]string{"kind"},
	)

	CatalogDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "applefetch",
			Name:      "catalog_documents",
			Help:      "Documents in the search catalog",
		},
	)
)

func init() {
	prometheus.MustRegister(PayloadLoadsTotal, FetchDuration, DecodeErrorsTotal, CatalogDocuments)
}

// ObserveFetch records one API fetch that started at start.
func ObserveFetch(kind string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	FetchDuration.WithLabelValues(kind, status).Observe(time.Since(start).Seconds())
}
