package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/libraria/internal/config"
	"github.com/dgallion1/libraria/internal/pipeline"
	"github.com/dgallion1/libraria/internal/store"
	"github.com/dgallion1/libraria/internal/store/memstore"
	"github.com/dgallion1/libraria/internal/store/pathstore"
	"github.com/dgallion1/libraria/internal/store/pgstore"
	"github.com/dgallion1/libraria/internal/summarize"
)

// openStore connects the configured store driver.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		s, err := pgstore.New(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPathstore:
		c := pathstore.NewClient(cfg.Store.PathstoreURL, cfg.Store.PathstoreAPIKey)
		return pathstore.New(c, log), nil
	case config.DriverMemory, "":
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newSummarizer builds the summarizer for the configured provider.
func newSummarizer(cfg config.Config, log *slog.Logger) (*summarize.Summarizer, error) {
	svc, err := summarize.NewService(cfg.ServiceConfig())
	if err != nil {
		return nil, err
	}
	return summarize.New(svc, cfg.SummarizerConfig(), log), nil
}

func newProcessor(st store.Store, sum *summarize.Summarizer, cfg config.Config, log *slog.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(st, sum, pipeline.ProcessorConfig{
		Parser:        cfg.ParserOptions(),
		TOC:           cfg.TOCOptions(),
		Segment:       cfg.ChunkerConfig(),
		MaxConcurrent: cfg.Summary.MaxConcurrent,
	}, log)
}
