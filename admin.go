package virtend

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/virtend/virtend/internal/admin"
)

// AdminOption configures the admin API handler.
type AdminOption = admin.Option

// WithAdminToken protects the /v1 admin routes with bearer-token auth.
// The argument is the bcrypt hash of the token, never the token itself.
func WithAdminToken(bcryptHash string) AdminOption {
	return admin.WithAuthToken(bcryptHash)
}

// WithAdminRegistry serves /metrics from reg instead of a handler-owned
// registry. The caller is then responsible for registering the virtend
// collectors.
func WithAdminRegistry(reg *prometheus.Registry) AdminOption {
	return admin.WithPrometheusRegistry(reg)
}

// AdminHandler returns the admin and debug API over the interceptor's
// registry and cache:
//
//	GET    /healthz          liveness and uptime
//	GET    /metrics          prometheus exposition
//	GET    /v1/endpoints     registration listing
//	DELETE /v1/endpoints/:id unregister by ID
//	GET    /v1/cache/stats   hit, miss, and size counters
//	DELETE /v1/cache         flush cached responses
func (i *Interceptor) AdminHandler(opts ...AdminOption) http.Handler {
	merged := make([]AdminOption, 0, len(opts)+1)
	merged = append(merged, admin.WithLogger(i.logger))
	merged = append(merged, opts...)
	return admin.New(i.registry, i.cache, merged...)
}
