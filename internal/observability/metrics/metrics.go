// Package metrics exposes prometheus counters for the billing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	webhookEvents     *prometheus.CounterVec
	paymentsRecorded  *prometheus.CounterVec
	invoicesSettled   prometheus.Counter
	intentsInitiated  *prometheus.CounterVec
	providerCallError *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenancy_webhook_events_total",
			Help: "Webhook callbacks by provider and outcome.",
		}, []string{"provider", "outcome"}),
		paymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenancy_payments_recorded_total",
			Help: "Payments committed to the ledger by method and status.",
		}, []string{"method", "status"}),
		invoicesSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tenancy_invoices_settled_total",
			Help: "Invoices transitioned to paid.",
		}),
		intentsInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenancy_payment_intents_total",
			Help: "Payment intents by provider and status.",
		}, []string{"provider", "status"}),
		providerCallError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tenancy_provider_call_errors_total",
			Help: "Failed outbound provider calls by provider and operation.",
		}, []string{"provider", "op"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.webhookEvents,
			m.paymentsRecorded,
			m.invoicesSettled,
			m.intentsInitiated,
			m.providerCallError,
		)
	}
	return m
}

func (m *Metrics) RecordWebhookEvent(provider, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) RecordPayment(method, status string) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(method, status).Inc()
}

func (m *Metrics) RecordInvoiceSettled() {
	if m == nil {
		return
	}
	m.invoicesSettled.Inc()
}

func (m *Metrics) RecordIntent(provider, status string) {
	if m == nil {
		return
	}
	m.intentsInitiated.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordProviderCallError(provider, op string) {
	if m == nil {
		return
	}
	m.providerCallError.WithLabelValues(provider, op).Inc()
}
