package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "confadmin"

// Service owns a private registry with the portal's counters. All methods are safe on a nil receiver.
type Service struct {
	registry         *prometheus.Registry
	invitations      *prometheus.CounterVec
	deliveryFailures prometheus.Counter
	gateDecisions    *prometheus.CounterVec
}

func NewService() *Service {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Service{
		registry: registry,
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invitations",
			Name:      "total",
			Help:      "Invitation lifecycle events by type.",
		}, []string{"event"}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invitations",
			Name:      "delivery_failures_total",
			Help:      "Invitations rolled back because the email could not be sent.",
		}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Request gate outcomes by rule.",
		}, []string{"rule"}),
	}

	registry.MustRegister(s.invitations, s.deliveryFailures, s.gateDecisions)
	return s
}

func (s *Service) InvitationCreated() {
	if s != nil {
		s.invitations.WithLabelValues("created").Inc()
	}
}

func (s *Service) InvitationConsumed() {
	if s != nil {
		s.invitations.WithLabelValues("consumed").Inc()
	}
}

func (s *Service) InvitationDeliveryFailed() {
	if s != nil {
		s.deliveryFailures.Inc()
	}
}

// GateDecision counts a request gate outcome under the rule that produced it.
func (s *Service) GateDecision(rule string) {
	if s != nil {
		s.gateDecisions.WithLabelValues(rule).Inc()
	}
}

func (s *Service) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

func (s *Service) Handler() http.Handler {
	if s == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
