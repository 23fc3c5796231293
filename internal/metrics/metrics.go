package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	messagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_messages_consumed_total",
			Help: "Messages consumed from RabbitMQ",
		},
		[]string{"queue"},
	)

	messagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_messages_dropped_total",
			Help: "Messages dropped as poison or schema mismatch",
		},
		[]string{"queue", "reason"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_handler_duration_seconds",
			Help:    "Queue handler duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"queue"},
	)

	emailsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_emails_sent_total",
			Help: "Emails handed to SMTP successfully",
		},
	)

	emailsFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_emails_failed_total",
			Help: "Emails that failed at the SMTP transport",
		},
	)

	smsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_sms_dropped_total",
			Help: "SMS messages dropped by the length guard",
		},
	)

	paymentRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_payment_retries_total",
			Help: "Background retries of payment status updates",
		},
	)

	rulesQuarantinedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_rules_quarantined_total",
			Help: "Broken rules removed from cache and store",
		},
	)

	notificationsDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_notifications_dispatched_total",
			Help: "Matched rule nodes dispatched to subscribers",
		},
	)

	currencyRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_currency_refresh_total",
			Help: "Currency refresh cycles by outcome",
		},
		[]string{"outcome"},
	)

	amqpReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_amqp_reconnects_total",
			Help: "AMQP connection attempts after the initial one",
		},
	)
)

func RecordMessageConsumed(queue string) {
	messagesConsumedTotal.WithLabelValues(queue).Inc()
}

func RecordMessageDropped(queue, reason string) {
	messagesDroppedTotal.WithLabelValues(queue, reason).Inc()
}

func RecordHandlerDuration(queue string, d time.Duration) {
	handlerDuration.WithLabelValues(queue).Observe(d.Seconds())
}

func RecordEmailSent()   { emailsSentTotal.Inc() }
func RecordEmailFailed() { emailsFailedTotal.Inc() }
func RecordSMSDropped()  { smsDroppedTotal.Inc() }

func RecordPaymentRetry()           { paymentRetriesTotal.Inc() }
func RecordRuleQuarantined()        { rulesQuarantinedTotal.Inc() }
func RecordNotificationDispatched() { notificationsDispatchedTotal.Inc() }

func RecordCurrencyRefresh(outcome string) {
	currencyRefreshTotal.WithLabelValues(outcome).Inc()
}

func RecordAMQPReconnect() { amqpReconnectsTotal.Inc() }

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
