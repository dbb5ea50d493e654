package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/hearstlab/storyshare/internal/blob"
	"github.com/hearstlab/storyshare/internal/config"
	"github.com/hearstlab/storyshare/internal/enps"
	"github.com/hearstlab/storyshare/internal/feed"
	"github.com/hearstlab/storyshare/internal/indexer"
	"github.com/hearstlab/storyshare/internal/interest"
	"github.com/hearstlab/storyshare/internal/llm"
	"github.com/hearstlab/storyshare/internal/pipeline"
	"github.com/hearstlab/storyshare/internal/stations"
	"github.com/hearstlab/storyshare/internal/store"
)

// app bundles the wired components shared by every command.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    *store.Store
	enps     *enps.Client
	pipeline *pipeline.Pipeline
	llm      llm.Client
}

// buildApp loads configuration and wires the full pipeline.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	st, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	gemini, err := llm.NewGeminiClient(ctx, cfg.APIKey, "")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}

	registry := stations.NewRegistry(cfg.Stations)
	log.Info().Int("stations", registry.Len()).Str("origin", cfg.OriginStation).Msg("station registry loaded")

	newsroom := enps.NewClient(cfg.Enps, log)
	analyzer := indexer.NewClient(cfg.Indexer.BaseURL, cfg.Indexer.AccessToken, cfg.Indexer.CallbackURL, log)
	resolver := interest.NewResolver(gemini, st, registry, cfg.TopicWindow(),
		int64(cfg.MaxConcurrentResolves), log)

	assembler, err := feed.NewAssembler(feed.NewFTPUploader(cfg.FTP), log)
	if err != nil {
		st.Close()
		_ = gemini.Close()
		return nil, err
	}

	var objects pipeline.ObjectStore = blob.NewHTTPStore(log)
	if cfg.KeepSourceObjects {
		objects = blob.NoopStore{}
	}

	p := pipeline.New(registry, newsroom, analyzer, st, resolver, assembler,
		objects, cfg.AgeThreshold(), log)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		enps:     newsroom,
		pipeline: p,
		llm:      gemini,
	}, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	a.store.Close()
	_ = a.llm.Close()
}
