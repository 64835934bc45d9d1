package companion

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danmuck/devprofile/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const diagnosticsShutdownTimeout = 5 * time.Second

// DiagnosticsRouter exposes /health, /ready and /metrics for the helper.
// /ready reports whether the configuration file is currently readable.
func DiagnosticsRouter(service string, p *Provider, started time.Time) *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(service))
	_ = r.SetTrustedProxies(nil)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(started).String(),
			"service": service,
			"served":  p.Served(),
		})
	})

	r.GET("/ready", func(c *gin.Context) {
		info, err := os.Stat(p.Path())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"config": p.Path(),
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"config": p.Path(),
			"bytes":  info.Size(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// ServeDiagnostics runs the diagnostics router on addr until ctx is done.
func ServeDiagnostics(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              strings.TrimSpace(addr),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("companion.diagnostics listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), diagnosticsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
