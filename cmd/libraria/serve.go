package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/libraria/internal/api"
	"github.com/dgallion1/libraria/internal/config"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/summarize"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the libraria HTTP server and its job workers.

Editing the config file while the server runs swaps the summary
provider without a restart.

Examples:
  libraria serve                 # Port from config (default 8090)
  libraria serve --port 3000     # Override the port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := config.NewManager(cfgFile, nil)
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		if servePort != "" {
			cfg.Port = servePort
		}

		log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
		slog.SetDefault(log)

		st, err := openStore(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer st.Close()

		sum, err := newSummarizer(cfg, log)
		if err != nil {
			return err
		}
		mgr.OnChange(func(c config.Config) {
			svc, err := summarize.NewService(c.ServiceConfig())
			if err != nil {
				log.Warn("summary provider not changed", "error", err)
				return
			}
			sum.SetService(svc)
			log.Info("summary provider updated", "provider", svc.Name())
		})
		mgr.Watch()

		orch := pipeline.NewOrchestrator(cfg, newProcessor(st, sum, cfg, log), log)
		orch.Start(context.WithoutCancel(ctx))

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      api.NewServer(orch, sum, log, cfg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute, // ?wait=true runs the whole pipeline in the request
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting libraria", "port", cfg.Port, "store", cfg.Store.Driver, "summary_provider", cfg.Summary.Provider)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			orch.Stop()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", "error", err)
		}
		orch.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (overrides config)")
}
