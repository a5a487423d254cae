package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanflow_items_delivered_total",
		Help: "Items forwarded into the consumer channel.",
	})
	Suspends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanflow_source_suspends_total",
		Help: "Times a source was paused because the channel buffer filled up.",
	})
	Resumes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanflow_source_resumes_total",
		Help: "Times a paused source was resumed.",
	})
	Terminations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanflow_source_terminations_total",
		Help: "Sources that reached a terminal state (complete or error).",
	})
	DrainFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scanflow_drain_failures_total",
		Help: "Non-cancellation send failures swallowed by the drain goroutine.",
	})
)

func Expose(port int) {
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), nil)
	}()
}
