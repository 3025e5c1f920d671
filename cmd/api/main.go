package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devyljin/jintranet-back/internal/config"
	"github.com/devyljin/jintranet-back/internal/database"
	"github.com/devyljin/jintranet-back/internal/jira"
	"github.com/devyljin/jintranet-back/internal/repository/postgres"
	"github.com/devyljin/jintranet-back/internal/router"
	"github.com/devyljin/jintranet-back/pkg/logger"
)

func main() {
	// config + logger
	cfg := config.Load()
	l := logger.New(cfg.Env)

	// db
	pool, err := database.Open(context.Background(), cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	// probe the tracker once at boot; a failure is logged, not fatal
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	probe := jira.NewClient(cfg.Jira, postgres.NewCrossRepo(pool), l)
	if probe.TestConnection(probeCtx) {
		l.Info().Str("baseUrl", cfg.Jira.BaseURL).Msg("jira connection ok")
	} else {
		l.Warn().Str("baseUrl", cfg.Jira.BaseURL).Msg("jira unreachable, ticket endpoints will fail")
	}
	probeCancel()

	// http
	r := router.New(l, pool, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second, // attachment batches can be slow
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		l.Info().Str("addr", srv.Addr).Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	l.Info().Msg("shutdown complete")
}
