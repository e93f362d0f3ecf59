package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/siamesedream/apiserver/config"
	"github.com/siamesedream/apiserver/internal/db"
	"github.com/siamesedream/apiserver/internal/events"
	"github.com/siamesedream/apiserver/internal/handlers"
	"github.com/siamesedream/apiserver/internal/services"
	"github.com/siamesedream/apiserver/internal/storage"
	"github.com/siamesedream/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	publisher  *events.Publisher
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		_ = dbConn.Close()
		return nil, errors.New("JWT_SECRET is required")
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	attachments, err := newAttachmentStore(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	dreamRepo := store.NewDreamRepository(dbConn)
	symbolRepo := store.NewSymbolRepository(dbConn)

	userService := services.NewUserService(userRepo)
	dreamService := services.NewDreamService(dreamRepo, publisher)
	symbolService := services.NewSymbolService(symbolRepo)

	authHandler := handlers.NewAuthHandler(userService, jwtSecret, cfg.Auth.TokenTTL)
	dreamHandler := handlers.NewDreamHandler(dreamService, attachments)
	feedHandler := handlers.NewFeedHandler(dreamService, symbolService)
	userHandler := handlers.NewUserHandler(userService, dreamService, symbolService)

	authMiddleware := handlers.RequireAuth(jwtSecret)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	// The original web client posts to bare /register and /login.
	router.Post("/register", authHandler.Register)
	router.Post("/login", authHandler.Login)
	router.Route("/dreams", func(r chi.Router) {
		handlers.DreamRouter(r, dreamHandler, authMiddleware)
	})
	handlers.FeedRouter(router, feedHandler)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userHandler, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		publisher:  publisher,
	}, nil
}

// newPublisher builds the event publisher for the configured backend.
// Returns nil when events are disabled.
func newPublisher(ctx context.Context, cfg config.Config) (*events.Publisher, error) {
	switch cfg.Events.Backend {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		backend, err := events.NewRabbitMQBackend(cfg.Events.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return events.NewPublisher(backend), nil
	case "pubsub":
		backend, err := events.NewPubSubBackend(ctx, cfg.Events.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return events.NewPublisher(backend), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}

// newAttachmentStore builds the attachment store for the configured
// backend. Returns nil when attachments are disabled.
func newAttachmentStore(ctx context.Context, cfg config.Config) (*storage.AttachmentStore, error) {
	var backend storage.ObjectStorage

	switch cfg.Storage.Backend {
	case "", "none":
		return nil, nil
	case "minio":
		minioBackend, err := storage.NewMinioBackend(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		backend = minioBackend
	case "gcs":
		gcsBackend, err := storage.NewGCSBackend(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		backend = gcsBackend
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	attachments := storage.NewAttachmentStore(backend)
	if err := attachments.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return attachments, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Printf("close event publisher: %v", err)
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
