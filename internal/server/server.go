package server

import (
    "context"
    "errors"
    "log/slog"
    "net/http"
    "time"

    "github.com/gin-gonic/gin"

    "kanban-task-man/internal/tasks"
)

// maxBodySize bounds request bodies of the write endpoints.
const maxBodySize = 1 << 20

// Server exposes a Manager over HTTP. Requests are handled independently; two
// concurrent writes to the same task are not coordinated.
type Server struct {
    m      *tasks.Manager
    log    *slog.Logger
    router *gin.Engine
}

func New(m *tasks.Manager, logger *slog.Logger) *Server {
    if logger == nil { logger = slog.Default() }
    router := gin.New()
    s := &Server{m: m, log: logger.With("component", "server"), router: router}
    router.Use(gin.Recovery(), s.requestLog())

    router.GET("/healthz", s.handleHealth)

    api := router.Group("/api")
    {
        api.GET("/lanes", s.handleLanes)
        api.GET("/tasks", s.handleListTasks)
        api.GET("/stats", s.handleStats)
        api.POST("/tasks", s.handleAddTask)
        api.GET("/tasks/:title", s.handleGetTask)
        api.DELETE("/tasks/:title", s.handleTrashTask)
        api.POST("/tasks/:title/move", s.handleMoveTask)
        api.PATCH("/tasks/:title", s.handleUpdateTask)
        api.POST("/split", s.handleSplit)
        api.POST("/import", s.handleImport)
        api.GET("/trash", s.handleListTrash)
        api.POST("/trash/:name/restore", s.handleRestore)
        api.DELETE("/trash", s.handleEmptyTrash)
    }
    return s
}

// Handler returns the router for use with httptest or a custom http.Server.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
    srv := &http.Server{
        Addr:              addr,
        Handler:           s.router,
        ReadHeaderTimeout: 10 * time.Second,
    }
    errCh := make(chan error, 1)
    go func() {
        s.log.Info("listening", "addr", addr)
        errCh <- srv.ListenAndServe()
    }()
    select {
    case err := <-errCh:
        if errors.Is(err, http.ErrServerClosed) { return nil }
        return err
    case <-ctx.Done():
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        s.log.Info("shutting down")
        return srv.Shutdown(shutdownCtx)
    }
}

func (s *Server) requestLog() gin.HandlerFunc {
    return func(c *gin.Context) {
        start := time.Now()
        c.Next()
        s.log.Debug("request",
            "method", c.Request.Method,
            "path", c.Request.URL.Path,
            "status", c.Writer.Status(),
            "duration", time.Since(start),
        )
    }
}
