package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/admin"
	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/catalog"
	"finitefield.org/bloomcare-web/internal/observability"
	"finitefield.org/bloomcare-web/internal/session"
)

// Config holds runtime options for the storefront HTTP server.
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration

	PageSize         int
	CarouselSize     int
	CarouselInterval time.Duration
	Currency         string
	Locale           string
	SuperAdminEmail  string
}

// Deps collects the services the handlers drive.
type Deps struct {
	Logger     *zap.Logger
	Backend    *backend.Client
	Catalog    *catalog.Loader
	Sessions   *session.Manager
	Controller *session.Controller
	Panel      *admin.Panel
	Confirmer  *admin.Confirmer
}

// Server renders the storefront and proxies user actions to the backend.
type Server struct {
	cfg        Config
	logger     *zap.Logger
	backend    *backend.Client
	catalog    *catalog.Loader
	sessions   *session.Manager
	controller *session.Controller
	panel      *admin.Panel
	confirmer  *admin.Confirmer
	views      *renderer
}

// NewServer validates the dependencies and parses the embedded templates.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Backend == nil:
		return nil, errors.New("httpserver: backend client is required")
	case deps.Catalog == nil:
		return nil, errors.New("httpserver: catalog loader is required")
	case deps.Sessions == nil:
		return nil, errors.New("httpserver: session manager is required")
	case deps.Controller == nil:
		return nil, errors.New("httpserver: session controller is required")
	case deps.Panel == nil || deps.Confirmer == nil:
		return nil, errors.New("httpserver: admin panel is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 3
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.CarouselInterval <= 0 {
		cfg.CarouselInterval = 5 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	views, err := newRenderer(cfg.Currency, cfg.Locale)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:        cfg,
		logger:     logger,
		backend:    deps.Backend,
		catalog:    deps.Catalog,
		sessions:   deps.Sessions,
		controller: deps.Controller,
		panel:      deps.Panel,
		confirmer:  deps.Confirmer,
		views:      views,
	}, nil
}

// HTTPServer wraps the router in an http.Server using the configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}
}

// Routes builds the router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind a proxy that overwrites it.
	router.Use(chimw.RealIP)
	router.Use(observability.Trace)
	router.Use(observability.AccessLog(s.logger))
	router.Use(observability.Recover(s.logger))
	router.Use(chimw.Timeout(s.cfg.RequestTimeout))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Group(func(r chi.Router) {
		r.Use(HTMX())
		r.Use(NoStore())
		r.Use(s.Device())
		r.Use(CSRF(maxUploadBytes))

		// The status poll is not user activity.
		r.Get("/session/status", s.SessionStatus)

		r.Group(func(r chi.Router) {
			r.Use(s.Lifecycle())

			r.Get("/", s.Home)
			r.Get("/products/{id}", s.ProductDetail)
			r.Get("/products/{id}/reviews", s.ProductReviews)
			r.Post("/products/{id}/reviews", s.SubmitReview)

			r.Get("/cart", s.Cart)
			r.Post("/cart/items", s.AddToCart)
			r.Post("/cart/items/{id}/delete", s.RemoveFromCart)
			r.Post("/checkout", s.Checkout)

			r.Post("/login", s.Login)
			r.Post("/register", s.Register)
			r.Get("/register/strength", s.PasswordStrength)
			r.Post("/logout", s.Logout)
			r.Post("/session/extend", s.ExtendSession)

			r.Get("/profile", s.Profile)
			r.Post("/profile", s.UpdateProfile)

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.RequireAdmin())

				r.Get("/", s.AdminPanel)
				r.Get("/products", s.AdminProducts)
				r.Post("/products", s.AdminCreateProduct)
				r.Get("/products/new", s.AdminProductForm)
				r.Get("/products/{id}/edit", s.AdminProductForm)
				r.Post("/products/{id}", s.AdminUpdateProduct)
				r.Get("/products/{id}/delete", s.AdminConfirmDeleteProduct)
				r.Post("/products/{id}/delete", s.AdminDeleteProduct)

				r.Get("/admins", s.AdminAccounts)
				r.Post("/admins", s.AdminCreateAdmin)
				r.Get("/admins/{id}/delete", s.AdminConfirmDeleteAdmin)
				r.Post("/admins/{id}/delete", s.AdminDeleteAdmin)
			})
		})
	})

	return router
}
