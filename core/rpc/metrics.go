package rpc

import "github.com/prometheus/client_golang/prometheus"

const prometheusNamespace = "scalerpc"

var RequestsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: prometheusNamespace,
	Name:      "requests_total",
	Help:      "Number of RPC requests sent",
}, []string{"method"})

var ErrorsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: prometheusNamespace,
	Name:      "errors_total",
	Help:      "RPC errors by method and error kind",
}, []string{"method", "kind"})

var ReconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: prometheusNamespace,
	Name:      "reconnects_total",
	Help:      "Requests that failed because the connection was being re-established",
})

var LastFinalizedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: prometheusNamespace,
	Name:      "last_finalized_block",
	Help:      "Last finalized block delivered by the follower",
}, []string{"chain"})

// Collectors returns every metric of the package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{RequestsCounter, ErrorsCounter, ReconnectsCounter, LastFinalizedGauge}
}

func observe(method string, err error) {
	RequestsCounter.WithLabelValues(method).Inc()
	if err == nil {
		return
	}
	if IsReconnecting(err) {
		ReconnectsCounter.Inc()
	}
	ErrorsCounter.WithLabelValues(method, kindLabel(err)).Inc()
}
