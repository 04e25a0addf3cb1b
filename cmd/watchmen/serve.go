package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/watchmen/internal/clock"
	"github.com/hamed0406/watchmen/internal/config"
	"github.com/hamed0406/watchmen/internal/history"
	"github.com/hamed0406/watchmen/internal/httpapi"
	apimw "github.com/hamed0406/watchmen/internal/httpapi/middleware"
	"github.com/hamed0406/watchmen/internal/logging"
	"github.com/hamed0406/watchmen/internal/notify"
	"github.com/hamed0406/watchmen/internal/watchmen"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring engine and the HTTP API",
	Long:  "Starts every configured service, sends alerts on outages, records ping history and serves the status API until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, loadConfig())
	},
}

func serve(ctx context.Context, cfg config.Config) (err error) {
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	defs, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		logger.Error("services_load_error", zap.String("file", cfg.ServicesFile), zap.Error(err))
		return err
	}
	svcs, err := buildServices(defs, cfg)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store_open_error", zap.String("store", cfg.Store), zap.Error(err))
		return err
	}
	defer st.close()

	eng, err := watchmen.New(svcs, st.outages, watchmen.WithLogger(logger))
	if err != nil {
		return err
	}

	history.NewRecorder(st.results, logger).Register(eng)

	alerter := notify.NewAlerter(buildNotifier(cfg, logger), notify.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	}, clock.New(), logger)
	alerter.Register(eng)
	alertCtx, cancelAlerts := context.WithCancel(context.Background())
	alertDone := make(chan struct{})
	go func() {
		defer close(alertDone)
		_ = alerter.Run(alertCtx)
	}()

	api := httpapi.NewServer(logger, eng, st.results, st.outages)
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listenErr := make(chan error, 1)
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	if err := eng.StartAll(); err != nil {
		logger.Error("watchmen_start_error", zap.Error(err))
	}
	logger.Info("watchmen_started",
		zap.Int("services", len(svcs)),
		zap.String("store", cfg.Store),
	)

	select {
	case <-ctx.Done():
		logger.Info("watchmen_shutdown", zap.String("reason", "signal"))
	case err = <-listenErr:
		logger.Error("api_listen_error", zap.Error(err))
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shCtx))
	api.Hub().Close()
	err = multierr.Append(err, eng.Close())

	cancelAlerts()
	<-alertDone
	if n := alerter.Flush(shCtx); n > 0 {
		logger.Info("alerts_flushed", zap.Int("count", n))
	}
	return err
}
