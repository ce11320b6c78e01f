// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package perf

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsSubSystemCall = "call"
	metricsSubSystemWS   = "ws"
)

type Metrics struct {
	registry *prometheus.Registry

	Peers                *prometheus.GaugeVec
	NegotiationErrors    prometheus.Counter
	MediaErrors          *prometheus.CounterVec
	SignalRoutingMisses  prometheus.Counter
	ReportErrors         prometheus.Counter
	CallDurationsSeconds prometheus.Histogram

	WSMessageCounters *prometheus.CounterVec
}

func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	var m Metrics

	if registry != nil {
		m.registry = registry
	} else {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
			Namespace: namespace,
		}))
		m.registry.MustRegister(collectors.NewGoCollector())
	}

	m.Peers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "peers_total",
			Help:      "Total number of active peer connections",
		},
		nil,
	)
	m.registry.MustRegister(m.Peers)

	m.NegotiationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "negotiation_errors_total",
			Help:      "Total number of peer negotiation failures",
		},
	)
	m.registry.MustRegister(m.NegotiationErrors)

	m.MediaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "media_errors_total",
			Help:      "Total number of local media failures",
		},
		[]string{"code"},
	)
	m.registry.MustRegister(m.MediaErrors)

	m.SignalRoutingMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "signal_routing_misses_total",
			Help:      "Total number of signals received for unknown peers",
		},
	)
	m.registry.MustRegister(m.SignalRoutingMisses)

	m.ReportErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "report_errors_total",
			Help:      "Total number of failed call report submissions",
		},
	)
	m.registry.MustRegister(m.ReportErrors)

	m.CallDurationsSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemCall,
			Name:      "durations_seconds",
			Help:      "Durations of completed calls",
			Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600},
		},
	)
	m.registry.MustRegister(m.CallDurationsSeconds)

	m.WSMessageCounters = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemWS,
			Name:      "messages_total",
			Help:      "Total number of sent/received signaling messages",
		},
		[]string{"type", "direction"},
	)
	m.registry.MustRegister(m.WSMessageCounters)

	return &m
}

func (m *Metrics) IncWSMessages(msgType, direction string) {
	m.WSMessageCounters.With(prometheus.Labels{"type": msgType, "direction": direction}).Inc()
}

func (m *Metrics) SetPeers(n int) {
	m.Peers.With(prometheus.Labels{}).Set(float64(n))
}

func (m *Metrics) IncNegotiationErrors() {
	m.NegotiationErrors.Inc()
}

func (m *Metrics) IncMediaErrors(code string) {
	m.MediaErrors.With(prometheus.Labels{"code": code}).Inc()
}

func (m *Metrics) IncSignalRoutingMisses() {
	m.SignalRoutingMisses.Inc()
}

func (m *Metrics) IncReportErrors() {
	m.ReportErrors.Inc()
}

func (m *Metrics) ObserveCallDuration(seconds float64) {
	m.CallDurationsSeconds.Observe(seconds)
}

// Handler returns an http.Handler exposing the registry in the Prometheus
// text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
