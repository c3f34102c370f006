package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rrens/projecthub/internal/api/handler"
	customMiddleware "github.com/Rrens/projecthub/internal/api/middleware"
	"github.com/Rrens/projecthub/internal/config"
	"github.com/Rrens/projecthub/internal/realtime"
	"github.com/Rrens/projecthub/internal/repository/postgres"
	"github.com/Rrens/projecthub/internal/repository/redis"
	"github.com/Rrens/projecthub/internal/security"
	"github.com/Rrens/projecthub/internal/service"
)

// Deps are the long-lived components the router wires handlers onto
type Deps struct {
	Config     *config.Config
	DB         *postgres.DB
	Redis      *redis.Client
	Broker     *realtime.Broker
	Dispatcher *realtime.Dispatcher
	Gatherer   prometheus.Gatherer
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	jwtManager := security.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
	)

	// Repositories
	userRepo := postgres.NewUserRepository(deps.DB)
	projectRepo := postgres.NewProjectRepository(deps.DB)
	memberRepo := postgres.NewMemberRepository(deps.DB)
	taskRepo := postgres.NewTaskRepository(deps.DB)
	milestoneRepo := postgres.NewMilestoneRepository(deps.DB)
	fileRepo := postgres.NewFileRepository(deps.DB)

	rateLimiter := redis.NewRateLimiter(
		deps.Redis,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)

	// Services emit into the dispatcher after every successful write
	authService := service.NewAuthService(userRepo, jwtManager)
	projectService := service.NewProjectService(projectRepo, memberRepo, deps.Dispatcher)
	taskService := service.NewTaskService(taskRepo, milestoneRepo, memberRepo, deps.Dispatcher)
	milestoneService := service.NewMilestoneService(milestoneRepo, memberRepo, deps.Dispatcher)
	memberService := service.NewMemberService(memberRepo, userRepo, deps.Dispatcher)
	fileService := service.NewFileService(fileRepo, memberRepo, deps.Dispatcher)

	authHandler := handler.NewAuthHandler(authService)
	projectHandler := handler.NewProjectHandler(projectService)
	taskHandler := handler.NewTaskHandler(taskService)
	milestoneHandler := handler.NewMilestoneHandler(milestoneService)
	memberHandler := handler.NewMemberHandler(memberService)
	fileHandler := handler.NewFileHandler(fileService)

	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	// Long-lived connections stay outside the request timeout
	wsServer := realtime.NewServer(deps.Broker, deps.Dispatcher, jwtManager, projectService, realtime.ServerOptions{
		SendBuffer:     cfg.Realtime.SendBuffer,
		PingInterval:   cfg.Realtime.PingInterval,
		PongTimeout:    cfg.Realtime.PongTimeout,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	r.Handle(cfg.Realtime.Path, wsServer)

	if cfg.Metrics.Enabled && deps.Gatherer != nil {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(map[string]handler.Pinger{
			"database": deps.DB,
			"redis":    deps.Redis,
		}))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(authMiddleware.Authenticate).Get("/me", authHandler.Me)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(rateLimitMiddleware.Limit)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)

				r.Route("/{projectID}", func(r chi.Router) {
					r.Use(customMiddleware.ProjectContext)

					r.Get("/", projectHandler.Get)
					r.Put("/", projectHandler.Update)
					r.Delete("/", projectHandler.Delete)

					r.Route("/tasks", func(r chi.Router) {
						r.Get("/", taskHandler.List)
						r.Post("/", taskHandler.Create)
						r.Put("/{taskID}", taskHandler.Update)
						r.Delete("/{taskID}", taskHandler.Delete)
					})

					r.Route("/milestones", func(r chi.Router) {
						r.Get("/", milestoneHandler.List)
						r.Post("/", milestoneHandler.Create)
						r.Put("/{milestoneID}", milestoneHandler.Update)
						r.Delete("/{milestoneID}", milestoneHandler.Delete)
					})

					r.Route("/members", func(r chi.Router) {
						r.Get("/", memberHandler.List)
						r.Post("/", memberHandler.Add)
						r.Delete("/{userID}", memberHandler.Remove)
					})

					r.Route("/files", func(r chi.Router) {
						r.Get("/", fileHandler.List)
						r.Post("/", fileHandler.Upload)
						r.Delete("/{fileID}", fileHandler.Delete)
					})
				})
			})
		})
	})

	return r
}
