// Package api serves the JSON management surface: rule and script CRUD,
// message history, and a manual tap endpoint for operator intervention.
package api

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/acornrpa/acorn/internal/dispatch"
	"github.com/acornrpa/acorn/internal/rules"
	"github.com/acornrpa/acorn/internal/script"
	"github.com/acornrpa/acorn/internal/store"
)

// StartOpts holds configuration for the management server.
type StartOpts struct {
	Store      *store.Store
	Eval       *script.Evaluator
	Engine     *rules.Engine        // rule mutations refresh its cache
	Dispatcher *dispatch.Dispatcher // optional, enables /api/tap
	Port       int
	Out        io.Writer
}

// Start launches the management HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	router, err := newRouter(opts)
	if err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8321
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Management API on http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}

// newRouter builds the router without binding a port, so tests can drive
// it through httptest.
func newRouter(opts StartOpts) (*gin.Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("api: store is required")
	}
	if opts.Eval == nil {
		return nil, fmt.Errorf("api: script evaluator is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("api: rule engine is required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	registerRoutes(router, opts)
	return router, nil
}
