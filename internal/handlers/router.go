package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/glassworks/storefront/internal/platform/httpx"
)

// RouteRegistrar mounts one route group, e.g. the cart endpoints.
type RouteRegistrar func(r chi.Router)

type middlewareChain []func(http.Handler) http.Handler

func (c middlewareChain) apply(r chi.Router) {
	for _, mw := range c {
		if mw != nil {
			r.Use(mw)
		}
	}
}

type routerConfig struct {
	prefix        string
	sessionHeader string
	global        middlewareChain
	health        *HealthHandlers

	cart, checkout, orders RouteRegistrar

	admin      []RouteRegistrar
	adminChain middlewareChain
}

type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 30 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter builds the HTTP surface:
//
//	/healthz, /readyz
//	/api/v1/cart/*, /api/v1/checkout/*   cart session required
//	/api/v1/orders/*                     shopper order lookup
//	/api/v1/admin/*                      back office, behind the admin chain
//
// Groups without a registrar answer 501.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		prefix:        defaultAPIPrefix,
		sessionHeader: DefaultCartSessionHeader,
		global:        middlewareChain{middleware.RequestID, middleware.RealIP, middleware.Timeout(defaultTimeout)},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	cfg.global.apply(r)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, "no route for "+req.URL.Path, http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		msg := fmt.Sprintf("%s is not supported on %s", req.Method, req.URL.Path)
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", msg, http.StatusMethodNotAllowed))
	})
	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.prefix, func(api chi.Router) {
		api.Group(func(shop chi.Router) {
			shop.Use(CartSessionMiddleware(cfg.sessionHeader))
			mountAt(shop, "/cart", "cart", cfg.cart)
			mountAt(shop, "/checkout", "checkout", cfg.checkout)
		})
		api.Route("/orders", func(orders chi.Router) {
			mountAt(orders, "", "orders", cfg.orders)
		})
		api.Route("/admin", func(admin chi.Router) {
			cfg.adminChain.apply(admin)
			var regs []RouteRegistrar
			for _, reg := range cfg.admin {
				if reg != nil {
					regs = append(regs, reg)
				}
			}
			if len(regs) == 0 {
				mountAt(admin, "", "admin", nil)
				return
			}
			for _, reg := range regs {
				reg(admin)
			}
		})
	})
	return r
}

// mountAt runs reg against r, or answers 501 for everything under path when reg is nil.
func mountAt(r chi.Router, path, group string, reg RouteRegistrar) {
	if reg != nil {
		reg(r)
		return
	}
	notImplemented := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", group+" routes are not enabled", http.StatusNotImplemented))
	}
	if path == "" {
		r.HandleFunc("/", notImplemented)
	} else {
		r.HandleFunc(path, notImplemented)
	}
	r.HandleFunc(path+"/*", notImplemented)
}

// WithMiddlewares appends global middleware after the request id, real ip and timeout defaults.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.global = append(cfg.global, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithCartSessionHeader renames the header carrying the anonymous cart session.
func WithCartSessionHeader(name string) Option {
	return func(cfg *routerConfig) {
		if name != "" {
			cfg.sessionHeader = name
		}
	}
}

func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.cart = reg }
}

func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.checkout = reg }
}

func WithOrderRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.orders = reg }
}

// WithAdminRoutes appends registrars mounted under /admin.
func WithAdminRoutes(regs ...RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.admin = append(cfg.admin, regs...) }
}

// WithAdminMiddlewares guards the /admin group only, typically authentication then role checks.
func WithAdminMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.adminChain = append(cfg.adminChain, mw...) }
}
