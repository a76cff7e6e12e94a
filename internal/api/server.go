// Package api serves the read-only HTTP API over the item store:
// item search, saved-search listing with run history, and store
// statistics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP API server.
type Server struct {
	engine *gin.Engine
	server *http.Server
	log    logger.Interface
}

// NewServer builds the router and wires the handlers.
func NewServer(
	addr string,
	db *sqlx.DB,
	items *database.ItemRepository,
	searches *database.SavedSearchRepository,
	log logger.Interface,
	debug bool,
) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	h := &handlers{db: db, items: items, searches: searches, log: log.WithComponent("api")}

	engine.GET("/health", h.health)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/items", h.listItems)
		v1.GET("/items/:id", h.getItem)
		v1.GET("/saved-searches", h.listSavedSearches)
		v1.GET("/saved-searches/:name/runs", h.listRuns)
		v1.GET("/stats", h.stats)
	}

	return &Server{
		engine: engine,
		server: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		log: log.WithComponent("api"),
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run serves until the context is canceled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// requestLogger logs one line per request.
func requestLogger(log logger.Interface) gin.HandlerFunc {
	reqLog := log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		reqLog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
