package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/go-todo-api/internal/auth"
	"github.com/redmonkez12/go-todo-api/internal/config"
	"github.com/redmonkez12/go-todo-api/internal/database"
	"github.com/redmonkez12/go-todo-api/internal/httputil"
	"github.com/redmonkez12/go-todo-api/internal/logging"
	"github.com/redmonkez12/go-todo-api/internal/todo"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth           *auth.Handler
	AuthMiddleware *auth.Middleware
	Todo           *todo.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *bun.DB, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "WWW-Authenticate"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.StripSlashes) // /todos and /todos/ are the same route
	r.Use(middleware.Compress(5))

	r.Get("/", handleRoot)
	r.Get("/health", handleHealth)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("Swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(database.Session(db))

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/forgot-password", h.Auth.ForgotPassword)
			r.Post("/verify-otp", h.Auth.VerifyOTP)
			r.Post("/reset-password", h.Auth.ResetPassword)

			r.With(h.AuthMiddleware.RequireAuth).Get("/me", h.Auth.Me)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Use(h.AuthMiddleware.RequireAuth)

			r.Post("/", h.Todo.Create)
			r.Get("/", h.Todo.List)
			r.Get("/{id}", h.Todo.Get)
			r.Put("/{id}", h.Todo.Update)
			r.Delete("/{id}", h.Todo.Delete)
			r.Put("/{id}/toggle", h.Todo.Toggle)
		})
	})

	return r
}

// RootResponse describes the API entry points
type RootResponse struct {
	Message   string            `json:"message"`
	Docs      string            `json:"docs"`
	Endpoints map[string]string `json:"endpoints"`
}

// handleRoot lists the API entry points
// @Summary      API index
// @Tags         health
// @Produce      json
// @Success      200 {object} RootResponse
// @Router       / [get]
func handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, RootResponse{
		Message: "Welcome to the Todo API",
		Docs:    "/swagger/index.html",
		Endpoints: map[string]string{
			"todos": "/todos",
			"users": "/users",
		},
	}, http.StatusOK)
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
