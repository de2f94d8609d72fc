// Package server wires storage, services, handlers and middleware into one
// HTTP server, and runs it with graceful shutdown.
//
// Dependency flow, assembled once in New:
//
//	sqlite.DB -> services -> handlers -> chi routes
//
// Services receive the repository interfaces, handlers receive services.
// Nothing below this package knows about routing.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/drink-journal/internal/auth"
	"github.com/sakif/drink-journal/internal/handler"
	"github.com/sakif/drink-journal/internal/middleware"
	sqliteRepo "github.com/sakif/drink-journal/internal/repository/sqlite"
	"github.com/sakif/drink-journal/internal/service"
	"github.com/sakif/drink-journal/internal/validation"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port   int
	DBPath string

	CORSAllowedOrigins []string

	// RateLimitRPS of 0 disables the per-IP limiter.
	RateLimitRPS   float64
	RateLimitBurst int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server owns the router and the database. The database is closed when
// Run returns.
type Server struct {
	router   *chi.Mux
	config   Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	verifier auth.Verifier
	limiter  *middleware.RateLimiter
}

// New opens the database and builds the routes. verifier checks bearer
// tokens on every route except the health probe.
func New(cfg Config, verifier auth.Verifier, logger *slog.Logger) (*Server, error) {
	if verifier == nil {
		return nil, errors.New("server: a token verifier is required")
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		verifier: verifier,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// Order: RequestID, RealIP, Logger, Recoverer, CORS, then the optional rate
// limit. Logger wraps Recoverer so a recovered panic is logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if s.limiter != nil {
		s.router.Use(middleware.RateLimit(s.limiter, s.logger))
	}

	v := validation.New()
	notifier := service.NewNotifier(s.db, s.logger)

	userService := service.NewUserService(s.db, v, s.logger)
	drinkService := service.NewDrinkService(s.db, v, s.logger)
	followService := service.NewFollowService(s.db, notifier, s.logger)
	communityService := service.NewCommunityService(s.db, notifier, v, s.logger)
	notificationService := service.NewNotificationService(s.db, s.logger)
	chatService := service.NewChatService(s.db, v, s.logger)
	statsService := service.NewStatsService(s.db, chatService, s.logger)
	circleService := service.NewCircleService(s.db, notifier, v, s.logger)

	health := handler.NewHealthHandler(s.db, s.logger)
	users := handler.NewUserHandler(userService, s.logger)
	drinks := handler.NewDrinkHandler(drinkService, statsService, s.logger)
	community := handler.NewCommunityHandler(communityService, followService, s.logger)
	notifications := handler.NewNotificationHandler(notificationService, s.logger)
	chat := handler.NewChatHandler(chatService, s.logger)
	circles := handler.NewCircleHandler(circleService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HandleHealth)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.verifier))
			r.Use(handler.ResolveUser(userService, s.logger))

			r.Get("/me", users.HandleGetMe)
			r.Put("/me", users.HandleUpdateMe)
			r.Get("/dashboard", drinks.HandleDashboard)

			r.Route("/drinks", func(r chi.Router) {
				r.Get("/", drinks.HandleList)
				r.Post("/", drinks.HandleCreate)
				r.Get("/stats", drinks.HandleStats)
				r.Get("/export", drinks.HandleExport)
				r.Get("/recommendations", drinks.HandleRecommendations)
				r.Get("/{id}", drinks.HandleGet)
				r.Put("/{id}", drinks.HandleUpdate)
				r.Delete("/{id}", drinks.HandleDelete)
			})

			r.Route("/community", func(r chi.Router) {
				r.Get("/feed", community.HandleFeed)
				r.Get("/drinks", community.HandlePublicDrinks)
				r.Get("/search", users.HandleSearch)
				r.Get("/users/{id}", users.HandleGetProfile)
				r.Get("/users/{id}/drinks", community.HandleUserDrinks)
				r.Get("/users/{id}/followers", community.HandleFollowers)
				r.Get("/users/{id}/following", community.HandleFollowing)
				r.Get("/follow/{id}", community.HandleFollowStatus)
				r.Post("/follow/{id}", community.HandleFollow)
				r.Delete("/follow/{id}", community.HandleUnfollow)
				r.Get("/follow-requests", community.HandleFollowRequests)
				r.Post("/follow-requests/{id}/accept", community.HandleAcceptRequest)
				r.Post("/follow-requests/{id}/decline", community.HandleDeclineRequest)
				r.Delete("/followers/{id}", community.HandleRemoveFollower)
				r.Post("/drinks/{id}/cheer", community.HandleCheer)
				r.Get("/drinks/{id}/comments", community.HandleListComments)
				r.Post("/drinks/{id}/comments", community.HandleAddComment)
				r.Delete("/comments/{id}", community.HandleDeleteComment)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notifications.HandleList)
				r.Get("/unread-count", notifications.HandleUnreadCount)
				r.Post("/read-all", notifications.HandleMarkAllRead)
				r.Post("/{id}/read", notifications.HandleMarkRead)
				r.Delete("/{id}", notifications.HandleDelete)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/conversations", chat.HandleListConversations)
				r.Post("/conversations", chat.HandleStartConversation)
				r.Get("/conversations/{id}/messages", chat.HandleListMessages)
				r.Post("/conversations/{id}/messages", chat.HandleSendMessage)
				r.Post("/conversations/{id}/read", chat.HandleMarkRead)
				r.Get("/unread-count", chat.HandleUnreadCount)
			})

			r.Route("/circles", func(r chi.Router) {
				r.Get("/", circles.HandleListMine)
				r.Post("/", circles.HandleCreate)
				r.Get("/public", circles.HandleListPublic)
				r.Get("/invites", circles.HandleListInvites)
				r.Post("/invites/{id}/accept", circles.HandleAcceptInvite)
				r.Post("/invites/{id}/decline", circles.HandleDeclineInvite)
				r.Get("/{id}", circles.HandleGet)
				r.Delete("/{id}", circles.HandleDelete)
				r.Get("/{id}/members", circles.HandleListMembers)
				r.Post("/{id}/join", circles.HandleJoin)
				r.Post("/{id}/leave", circles.HandleLeave)
				r.Delete("/{id}/members/{userId}", circles.HandleRemoveMember)
				r.Post("/{id}/invites", circles.HandleInvite)
				r.Get("/{id}/posts", circles.HandleListPosts)
				r.Post("/{id}/posts", circles.HandleCreatePost)
			})
		})
	})
}

// Start runs the server until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Run(ctx context.Context) error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close database", slog.String("error", err.Error()))
	}
}

// Close releases the database without serving. Use it when the server was
// built but never run.
func (s *Server) Close() {
	s.close()
}

