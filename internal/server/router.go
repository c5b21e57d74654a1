package server

import (
	"net/http"

	"github.com/halvard/coxswain/internal/metrics"
	"github.com/halvard/coxswain/internal/server/handlers"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	if r.server.cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(r.server.cfg.Server.MaxBodySize))
	}

	if r.server.cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(r.server.cfg.Server.CORS))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	health := handlers.NewHealthHandlers(r.server.DB(), r.server.Broker(), r.server.version)
	r.mux.HandleFunc("GET /{$}", health.Health)
	r.mux.HandleFunc("GET /api/health", health.Health)

	r.mux.Handle("GET /metrics", metrics.Handler())

	schedules := handlers.NewScheduleHandlers(r.server.Schedules())
	r.mux.HandleFunc("GET /api/schedules", schedules.List)
	r.mux.HandleFunc("POST /api/schedules", schedules.Create)
	r.mux.HandleFunc("GET /api/schedules/{id}", schedules.Get)
	r.mux.HandleFunc("PATCH /api/schedules/{id}", schedules.Update)
	r.mux.HandleFunc("DELETE /api/schedules/{id}", schedules.Delete)
	r.mux.HandleFunc("POST /api/schedules/{id}/toggle", schedules.Toggle)

	execs := handlers.NewExecutionHandlers(r.server.Status(), r.server.Runner(), r.server.Supervisor())
	r.mux.HandleFunc("GET /api/executions", execs.List)
	r.mux.HandleFunc("POST /api/executions", execs.Create)
	r.mux.HandleFunc("GET /api/executions/{job_id}", execs.Get)

	if r.server.cfg.Realtime.Enabled && r.server.Broker() != nil {
		rt := handlers.NewRealtimeHandler(r.server.Broker())
		r.mux.HandleFunc("GET /api/realtime", rt.HandleWebSocket)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}
