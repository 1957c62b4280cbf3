package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions configures the store router
type RouterOptions struct {
	CORSOrigins []string
	RequireAuth bool
	// Events serves the /events stream when set
	Events http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	flowcharts *FlowchartHandler
	auth       *AuthHandler
	metrics    *Metrics
	logger     *zap.Logger
	opts       RouterOptions
}

// NewRouter creates a new router instance
func NewRouter(flowcharts *FlowchartHandler, auth *AuthHandler, metrics *Metrics, logger *zap.Logger, opts RouterOptions) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		flowcharts: flowcharts,
		auth:       auth,
		metrics:    metrics,
		logger:     logger,
		opts:       opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(rt.metrics.Instrument)
	}

	origins := rt.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", rt.flowcharts.Health)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}
	if rt.auth != nil {
		router.Post("/login", rt.auth.Login)
	}

	router.Route("/flowcharts", func(r chi.Router) {
		if rt.opts.RequireAuth && rt.auth != nil {
			r.Use(rt.auth.RequireAuth)
		}
		r.Get("/", rt.flowcharts.ListFlowcharts)
		r.Post("/append", rt.flowcharts.Append)
		r.Patch("/node-position", rt.flowcharts.UpdateNodePosition)
		r.Get("/{id}", rt.flowcharts.GetFlowchart)
		r.Put("/{id}", rt.flowcharts.SaveFlowchart)
		r.Delete("/{id}", rt.flowcharts.DeleteFlowchart)
	})

	if rt.opts.Events != nil {
		router.Group(func(r chi.Router) {
			if rt.opts.RequireAuth && rt.auth != nil {
				r.Use(rt.auth.RequireAuth)
			}
			r.Handle("/events", rt.opts.Events)
		})
	}

	return router
}
