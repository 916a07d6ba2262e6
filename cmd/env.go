package main

import (
	"context"
	"time"

	"github.com/proprio-data/cadastre-api/internal/db"
	"github.com/proprio-data/cadastre-api/internal/enrich"
	"github.com/proprio-data/cadastre-api/internal/geostore"
	"github.com/proprio-data/cadastre-api/internal/ratelimit"
	"github.com/proprio-data/cadastre-api/internal/search"
	"github.com/proprio-data/cadastre-api/pkg/sirene"
)

// appEnv holds the wired application components shared by the commands.
type appEnv struct {
	pool     db.Pool
	store    *geostore.Store
	enricher *enrich.Enricher
	orch     *search.Orchestrator
}

// initApp connects the pool and wires the store, the shared registry
// limiter, the enricher, and the orchestrator.
func initApp(ctx context.Context) (*appEnv, error) {
	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns: int32(cfg.Store.MaxConns),
		MinConns: int32(cfg.Store.MinConns),
	})
	if err != nil {
		return nil, err
	}

	store := geostore.NewStore(pool)

	limiter := ratelimit.NewWindow(
		cfg.Sirene.MaxRequests,
		time.Duration(cfg.Sirene.WindowSecs)*time.Second,
	)
	registry := sirene.NewClient(cfg.Sirene.Key, sirene.WithBaseURL(cfg.Sirene.BaseURL))
	enricher := enrich.New(registry, limiter)

	orch := search.New(store, enricher, search.Limits{
		MaxResults:       cfg.Search.MaxResults,
		MaxPolygonPoints: cfg.Search.MaxPolygonPoints,
		MaxRadiusMeters:  cfg.Search.MaxRadiusMeters,
		EnrichmentCap:    cfg.Search.EnrichmentCap,
	})

	return &appEnv{
		pool:     pool,
		store:    store,
		enricher: enricher,
		orch:     orch,
	}, nil
}

func (e *appEnv) Close() {
	e.pool.Close()
}
