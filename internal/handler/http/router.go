package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// Services bundles the business services the router exposes.
type Services struct {
	Products *service.ProductService
	Reviews  *service.ReviewService
	Orders   *service.OrderService
	Users    *service.UserService
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	RateLimitRPS      float64
	RateLimitBurst    int
	PprofAllowedCIDRs []string
	// UploadsPath is where Uploads is mounted, e.g. "/uploads". Both must
	// be set for uploaded images to be served.
	UploadsPath string
	Uploads     http.Handler
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	cfg RouterConfig,
	svc Services,
	verify middleware.TokenVerifier,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}
	if cfg.UploadsPath != "" && cfg.Uploads != nil {
		r.Handle(cfg.UploadsPath+"/*", http.StripPrefix(cfg.UploadsPath, cfg.Uploads))
	}

	auth := middleware.Authenticate(verify)
	writeLimit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, logger)
	// Re-derive the request logger once the user id is known.
	userLogger := middleware.RequestLogger(logger)

	productHandler := NewProductHandler(svc.Products, logger)
	reviewHandler := NewReviewHandler(svc.Reviews, logger)
	orderHandler := NewOrderHandler(svc.Orders, logger)
	userHandler := NewUserHandler(svc.Users, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Product API endpoints
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.With(middleware.CacheControl(defaultSearchMaxAge)).Get("/search", productHandler.Search)
			r.Get("/categories", productHandler.ListCategories)
			r.Get("/slug/{slug}", productHandler.GetProductBySlug)
			r.Get("/{id}", productHandler.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(auth, userLogger, writeLimit)

				r.Post("/{id}/reviews", reviewHandler.CreateReview)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)

					r.Post("/", productHandler.CreateProduct)
					r.Post("/images", productHandler.UploadImage)
					r.Put("/{id}", productHandler.UpdateProduct)
					r.Delete("/{id}", productHandler.DeleteProduct)
				})
			})
		})

		// Order API endpoints
		r.Route("/orders", func(r chi.Router) {
			r.Use(auth, userLogger)

			r.With(writeLimit).Post("/", orderHandler.CreateOrder)
			r.Get("/mine", orderHandler.ListMine)
			r.Get("/{id}", orderHandler.GetOrder)
			r.With(writeLimit).Put("/{id}/pay", orderHandler.PayOrder)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/", orderHandler.ListOrders)
				r.Put("/{id}/deliver", orderHandler.DeliverOrder)
				r.Put("/{id}/accept", orderHandler.DeliverOrder)
				r.Delete("/{id}", orderHandler.DeleteOrder)
			})
		})

		// User API endpoints
		r.Route("/users", func(r chi.Router) {
			r.Use(auth, userLogger)

			r.With(writeLimit).Put("/profile", userHandler.UpdateProfile)
			r.Get("/{id}", userHandler.GetUser)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)

				r.Get("/", userHandler.ListUsers)
				r.Delete("/{id}", userHandler.DeleteUser)
			})
		})
	})

	return r
}

// callerFrom builds the service caller from the verified token.
func callerFrom(r *http.Request) service.Caller {
	c := middleware.ClaimsFromContext(r.Context())
	if c == nil {
		return service.Caller{}
	}
	return service.Caller{UserID: c.UserID, IsAdmin: c.IsAdmin}
}
