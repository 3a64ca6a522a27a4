package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics exposes counters/histograms for the booking-chat client.
type ClientMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	selectionsTotal   *prometheus.CounterVec
	unknownComponents *prometheus.CounterVec
}

func NewClientMetrics(reg prometheus.Registerer) *ClientMetrics {
	m := &ClientMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "client",
			Name:      "api_requests_total",
			Help:      "Total portal API requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "careportal",
			Subsystem: "client",
			Name:      "api_request_seconds",
			Help:      "Latency of portal API requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		selectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "chat",
			Name:      "selections_total",
			Help:      "Selections sent to the booking assistant by component type",
		}, []string{"component_type"}),
		unknownComponents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "chat",
			Name:      "unknown_components_total",
			Help:      "Messages whose component_type has no registered widget",
		}, []string{"component_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency, m.selectionsTotal, m.unknownComponents)
	return m
}

// ObserveRequest records one API call. status is the HTTP status code, or 0
// when the request never got a response.
func (m *ClientMetrics) ObserveRequest(endpoint string, status int, seconds float64) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(endpoint, label).Inc()
	m.requestLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *ClientMetrics) ObserveSelection(componentType string) {
	if m == nil {
		return
	}
	m.selectionsTotal.WithLabelValues(componentType).Inc()
}

func (m *ClientMetrics) ObserveUnknownComponent(componentType string) {
	if m == nil {
		return
	}
	m.unknownComponents.WithLabelValues(componentType).Inc()
}

// PortalMetrics exposes counters for the development portal backend.
type PortalMetrics struct {
	otpSent     *prometheus.CounterVec
	otpLockouts prometheus.Counter
	messages    *prometheus.CounterVec
}

func NewPortalMetrics(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		otpSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "portal",
			Name:      "otp_sent_total",
			Help:      "One-time codes issued by channel",
		}, []string{"channel"}),
		otpLockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "portal",
			Name:      "otp_lockouts_total",
			Help:      "OTP requests refused because the attempt window is exhausted",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "careportal",
			Subsystem: "portal",
			Name:      "messages_total",
			Help:      "Booking chat messages received by component type",
		}, []string{"component_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.otpSent, m.otpLockouts, m.messages)
	return m
}

func (m *PortalMetrics) ObserveOTPSent(channel string) {
	if m == nil {
		return
	}
	m.otpSent.WithLabelValues(channel).Inc()
}

func (m *PortalMetrics) ObserveLockout() {
	if m == nil {
		return
	}
	m.otpLockouts.Inc()
}

func (m *PortalMetrics) ObserveMessage(componentType string) {
	if m == nil {
		return
	}
	if componentType == "" {
		componentType = "text"
	}
	m.messages.WithLabelValues(componentType).Inc()
}
