package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/lambdaboot"
	"github.com/fpang/fbgraph/internal/signedrequest"
	"github.com/fpang/fbgraph/internal/store"
	"github.com/fpang/fbgraph/internal/webhook"
)

var withAWSFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the realtime updates endpoint over HTTP",
	Long: `Serve the realtime updates endpoint and the deauthorize callback.

Routes:
  GET|POST {base-path}/{subscription}   subscription handshake and updates
  POST     /deauthorize                 Deauthorize Callback
  GET      /healthz                     liveness

Updates are logged. With --aws the ledger, archive and EventBridge handlers
are enabled as configured by FB_TABLE, FB_ARCHIVE_BUCKET and
FB_FORWARD_EVENTS, using the default AWS credentials.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "Listen address ($FB_LISTEN, default :8080)")
	f.String("base-path", "", "Route prefix of the realtime endpoint ($FB_BASE_PATH)")
	f.String("subscriptions", "", "Subscriptions as name=token,... ($FB_SUBSCRIPTIONS)")
	f.String("table", "", "DynamoDB table of the update ledger ($FB_TABLE)")
	f.BoolVar(&withAWSFlag, "aws", false, "Enable the AWS backed update handlers")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.ValidateWebhook(); err != nil {
		return err
	}

	handlers := []webhook.UpdateHandler{webhook.LogHandler{}}
	var deauth *store.DeauthorizationStore
	if withAWSFlag {
		_, clients := lambdaboot.InitAWS(cmd.Context())
		var (
			features map[string]bool
			err      error
		)
		handlers, features, err = lambdaboot.Handlers(cfg, clients)
		if err != nil {
			return err
		}
		if cfg.Table != "" {
			deauth = store.NewDeauthorizationStore(clients.Dynamo, cfg.Table)
		}
		log.Info().Interface("features", features).Msg("AWS update handlers enabled")
	}

	reg := webhook.NewRegistry(cfg.AppSecret, cfg.Subscriptions, handlers...)
	e := newServer(cfg, webhook.NewDispatcher(reg), deauth)

	go func() {
		log.Info().Str("listen", cfg.Listen).Str("route", cfg.Route()).Strs("subscriptions", reg.Subscriptions()).
			Msg("Realtime endpoint listening")
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received, shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return err
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}

// newServer mounts the dispatcher and the deauthorize callback on echo. The
// subscription is the last path segment, which Dispatcher reads itself.
func newServer(cfg *config.Config, d *webhook.Dispatcher, deauth *store.DeauthorizationStore) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Debug().
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))

	var onDeauthorize signedrequest.DeauthorizeFunc
	if deauth != nil {
		onDeauthorize = deauth.Record
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":        "ok",
			"subscriptions": d.Registry().Subscriptions(),
		})
	})
	e.Any(strings.TrimRight(cfg.BasePath, "/")+"/:subscription", echo.WrapHandler(d))
	e.Any("/deauthorize", echo.WrapHandler(signedrequest.NewDeauthorizeHandler(cfg.AppSecret, onDeauthorize)))
	return e
}
