// Package httpapi serves read-only introspection endpoints for operators:
// GET /status (per-status task counts; the group table is not included) and
// GET /tasks (the full task list). Both are snapshots obtained by round-tripping a message
// through the dispatch loop's own bounded channel — handlers here never
// touch the registry directly (SPEC_FULL.md §4.10).
//
// Grounded on edirooss-zmux-server/cmd/zmux-server/main.go's gin.New +
// gin.Recovery()-first router construction and its zap request-logging
// middleware, generalized to this daemon's single introspection concern.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pueued/internal/dispatch"
	"pueued/internal/types"
	"pueued/internal/wire"
)

// Server wraps a gin.Engine bound to one Loop.
type Server struct {
	engine *gin.Engine
	loop   *dispatch.Loop
}

// New builds the router. log may be nil, in which case request logging is
// skipped (tests construct a Server this way).
func New(loop *dispatch.Loop, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	if log != nil {
		r.Use(zapLogger(log))
	}

	s := &Server{engine: r, loop: loop}
	r.GET("/status", s.handleStatus)
	r.GET("/tasks", s.handleTasks)
	return s
}

// Run starts an HTTP listener at bind and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context, bind string) error {
	srv := &http.Server{Addr: bind, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	resp, err := s.loop.Submit(c.Request.Context(), wire.Message{Type: wire.MsgStatus})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	tasks, _ := resp.Payload.([]*types.Task)
	counts := make(map[types.Status]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

func (s *Server) handleTasks(c *gin.Context) {
	resp, err := s.loop.Submit(c.Request.Context(), wire.Message{Type: wire.MsgStatus})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.Payload)
}

func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
