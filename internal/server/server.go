package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/config"
	"chat-relay/internal/auth"
	"chat-relay/internal/handler"
	"chat-relay/internal/metrics"
	"chat-relay/internal/middleware"
	"chat-relay/internal/redis"
	"chat-relay/internal/transport/httpdto"
	"chat-relay/internal/websocket"
	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Users *handler.UserHandler
	WS    *websocket.Handler
}

// Deps are the optional collaborators routes depend on. Nil fields switch
// the matching feature off.
type Deps struct {
	Tokens      *auth.TokenParser
	Limiter     *redis.RateLimiter
	Health      func(ctx context.Context) error
	Connections func() int
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Deps) {
	s.engine.Use(otelgin.Middleware(s.config.ServiceName))
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.WSAllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(metrics.HTTPMetricsMiddleware())
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		body := gin.H{"status": "healthy"}
		if deps.Connections != nil {
			body["connections"] = deps.Connections()
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(body))
	})

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if handlers.WS != nil {
		s.engine.GET("/ws", middleware.HandshakeRateLimitMiddleware(deps.Limiter, s.logger), handlers.WS.Connect)
	}

	if handlers.Users != nil {
		users := s.engine.Group("/v1/users")
		users.Use(middleware.APIRateLimitMiddleware(deps.Limiter, s.logger))
		if deps.Tokens != nil {
			users.Use(middleware.AuthMiddleware(deps.Tokens))
		}
		{
			users.GET("", handlers.Users.List)
			users.GET("/:id", handlers.Users.Get)
			users.GET("/:id/presence", handlers.Users.Presence)
			users.PATCH("/me", handlers.Users.UpdateMe)
		}
	}
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
