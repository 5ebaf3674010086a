package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"accounthub/backend/internal/domain"
	"accounthub/backend/internal/event"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 账户指标
	UsersRegistered prometheus.Counter
	LoginsTotal     prometheus.Counter
	PasswordChanges prometheus.Counter

	// 邀请码指标
	SignupCodesSent     prometheus.Counter
	SignupCodesRedeemed prometheus.Counter

	// 邮箱确认指标
	ConfirmationsSent   prometheus.Counter
	EmailsConfirmed     prometheus.Counter
	ConfirmationsSwept  prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounthub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounthub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		UsersRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_users_registered_total",
				Help: "Total number of registered users",
			},
		),
		LoginsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_logins_total",
				Help: "Total number of successful logins",
			},
		),
		PasswordChanges: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_password_changes_total",
				Help: "Total number of password changes",
			},
		),
		SignupCodesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_signup_codes_sent_total",
				Help: "Total number of signup codes sent",
			},
		),
		SignupCodesRedeemed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_signup_codes_redeemed_total",
				Help: "Total number of signup code redemptions",
			},
		),
		ConfirmationsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_email_confirmations_sent_total",
				Help: "Total number of confirmation emails sent",
			},
		),
		EmailsConfirmed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_emails_confirmed_total",
				Help: "Total number of confirmed email addresses",
			},
		),
		ConfirmationsSwept: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_email_confirmations_swept_total",
				Help: "Total number of expired confirmations deleted by the sweeper",
			},
		),
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounthub_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type"},
		),
		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "accounthub_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// BindEvents 把业务事件接到对应的计数器上
func (m *Metrics) BindEvents(bus *event.Bus) {
	bus.Subscribe(domain.EventUserSignedUp, func(domain.Event) { m.UsersRegistered.Inc() })
	bus.Subscribe(domain.EventUserLoggedIn, func(domain.Event) { m.LoginsTotal.Inc() })
	bus.Subscribe(domain.EventPasswordChanged, func(domain.Event) { m.PasswordChanges.Inc() })
	bus.Subscribe(domain.EventSignupCodeSent, func(domain.Event) { m.SignupCodesSent.Inc() })
	bus.Subscribe(domain.EventSignupCodeUsed, func(domain.Event) { m.SignupCodesRedeemed.Inc() })
	bus.Subscribe(domain.EventEmailConfirmationSent, func(domain.Event) { m.ConfirmationsSent.Inc() })
	bus.Subscribe(domain.EventEmailConfirmed, func(domain.Event) { m.EmailsConfirmed.Inc() })
}

// Handler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
