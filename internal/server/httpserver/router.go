package httpserver

import (
	"log/slog"
	"net/http"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// API serves every application route (see handler.Handler).
	API http.Handler

	// Metrics serves GET /metrics. Nil disables the endpoint.
	Metrics http.Handler

	// Observer receives per-request metrics. Nil disables them.
	Observer RequestObserver

	// Logger for access and panic logging.
	Logger *slog.Logger

	// AdminAllowList is the IP/CIDR allowlist for /admin/ (empty = no restriction).
	AdminAllowList []string

	// TrustProxy honours X-Forwarded-For when resolving client IPs.
	TrustProxy bool

	// AccessLog enables one log line per request.
	AccessLog bool
}

// NewRouter creates the top-level handler with routes and middleware.
//
// Order: Recover -> RequestID -> AccessLog -> Metrics -> [ACL] -> API
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	common := []Middleware{Recover(log), RequestID()}
	if cfg.TrustProxy {
		common = append(common, TrustProxy())
	}
	if cfg.AccessLog {
		common = append(common, AccessLog(log))
	}
	if cfg.Observer != nil {
		common = append(common, Metrics(cfg.Observer))
	}

	mux := http.NewServeMux()

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics, Recover(log)))
	}

	mux.Handle("/", Chain(cfg.API, common...))

	admin := append(append([]Middleware{}, common...), NetworkACL(&NetworkACLConfig{
		AllowList: cfg.AdminAllowList,
		Logger:    log,
	}))
	mux.Handle("/admin/", Chain(cfg.API, admin...))

	return mux
}
