package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AuthzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "educhat_authz_decisions_total",
			Help: "Authorization decisions by outcome.",
		},
		[]string{"outcome"},
	)

	AdminBypasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "educhat_authz_admin_bypasses_total",
		Help: "Permission checks short-circuited by the admin role.",
	})

	AuditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "educhat_audit_write_failures_total",
		Help: "Audit log writes that failed and were dropped.",
	})
)

// Init registers the collectors with the default registry.
func Init() {
	prometheus.MustRegister(AuthzDecisions, AdminBypasses, AuditWriteFailures)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
