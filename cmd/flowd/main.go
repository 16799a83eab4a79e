// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teamtenx/workflow-engine/internal/config"
	"github.com/teamtenx/workflow-engine/internal/logging"
	"github.com/teamtenx/workflow-engine/internal/store"
	"github.com/teamtenx/workflow-engine/internal/template"
	httptransport "github.com/teamtenx/workflow-engine/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	st := store.New(cfg.OutputDir, logger)
	builder := template.NewBuilder(cfg.OutputDir, cfg.CanvasURL, nil)

	handler := httptransport.NewRouter(httptransport.Deps{
		Store:     st,
		Builder:   builder,
		Logger:    logger,
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("status api listening",
			"addr", cfg.HTTPAddr,
			"output_dir", cfg.OutputDir,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
