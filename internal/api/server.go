// Package api provides the HTTP API server and handlers for PageTurn.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pageturnapp/pageturn-server/internal/ratelimit"
	"github.com/pageturnapp/pageturn-server/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	authService    *service.AuthService
	bookService    *service.BookService
	readingService *service.ReadingService
	statsService   *service.StatsService
	commentService *service.CommentService
	authLimiter    *ratelimit.KeyedRateLimiter
	router         *chi.Mux
	logger         *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	authService *service.AuthService,
	bookService *service.BookService,
	readingService *service.ReadingService,
	statsService *service.StatsService,
	commentService *service.CommentService,
	authLimiter *ratelimit.KeyedRateLimiter,
	frontendURL string,
	logger *slog.Logger,
) *Server {
	s := &Server{
		authService:    authService,
		bookService:    bookService,
		readingService: readingService,
		statsService:   statsService,
		commentService: commentService,
		authLimiter:    authLimiter,
		router:         chi.NewRouter(),
		logger:         logger,
	}

	s.setupMiddleware(frontendURL)
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware(frontendURL string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Bearer tokens are verified on every request; handlers decide whether
	// an anonymous caller is acceptable.
	s.router.Use(s.authContext)
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints (public, rate limited per client IP).
		r.Route("/auth", func(r chi.Router) {
			r.Use(s.rateLimitByIP)
			r.Post("/register", s.handleRegister)
			r.Post("/activate", s.handleActivate)
			r.Post("/login", s.handleLogin)
			r.Post("/password-reset", s.handlePasswordResetRequest)
			r.Post("/password-reset/confirm", s.handlePasswordResetConfirm)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/me", s.handleGetCurrentUser)
			r.Get("/me/profile", s.handleGetProfile)
			r.Get("/me/reading", s.handleGetCurrentReading)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Get("/{id}", s.handleGetBook)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateBook)
				r.Post("/{id}/start-reading", s.handleStartReading)
				r.Put("/{id}/stop-reading", s.handleStopReading)
				r.Get("/{id}/statistic", s.handleReadingStatistic)
				r.Get("/{id}/reading-history", s.handleReadingHistory)
			})
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateCategory)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", s.handleListComments)
			r.Get("/{id}", s.handleGetComment)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/", s.handleCreateComment)
				r.Put("/{id}", s.handleUpdateComment)
				r.Delete("/{id}", s.handleDeleteComment)
				r.Post("/{id}/upvote", s.handleUpvoteComment)
				r.Delete("/{id}/downvote", s.handleDownvoteComment)
			})
		})
	})
}
