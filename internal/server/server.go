package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JoelGresham/teamPoll/config"
	"github.com/JoelGresham/teamPoll/internal/handler"
	"github.com/JoelGresham/teamPoll/internal/middleware"
	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
	"github.com/JoelGresham/teamPoll/internal/websocket"
	"github.com/JoelGresham/teamPoll/pkg/database"
	"github.com/JoelGresham/teamPoll/pkg/logger"
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

// ConnectLimit caps socket upgrades per client IP per minute.
const ConnectLimit = 30

type Handlers struct {
	Admin  *handler.AdminHandler
	Poll   *handler.PollHandler
	Socket *websocket.Handler
}

type Deps struct {
	DB *sql.DB
	// ConnectLimiter guards /ws. Nil disables the check.
	ConnectLimiter ratelimit.Limiter
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

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// OnShutdown registers fn to run when the server begins shutting down.
func (s *Server) OnShutdown(fn func()) {
	s.httpServer.RegisterOnShutdown(fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Deps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.AllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), deps.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	if handlers.Socket != nil {
		ws := []gin.HandlerFunc{}
		if deps.ConnectLimiter != nil {
			ws = append(ws, middleware.RateLimitMiddleware(deps.ConnectLimiter, "ws", ConnectLimit))
		}
		ws = append(ws, handlers.Socket.Connect)
		s.engine.GET("/ws", ws...)
	}

	handler.RegisterRoutes(s.engine, handlers.Admin, handlers.Poll)
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-quit:
		if s.logger != nil {
			s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
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
