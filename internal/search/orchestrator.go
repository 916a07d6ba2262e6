// Package search runs the full polygon/radius ownership lookup: region
// validation, spatial fetch, owner aggregation, and registry enrichment.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/cadastre"
	"github.com/proprio-data/cadastre-api/internal/geostore"
)

// Diagnostic codes reported on empty results.
const (
	DiagInvalidRegion = "invalid_region"
	DiagNoOwners      = "no_owners_in_region"
	DiagStoreError    = "store_error"
)

// GeoStore is the spatial lookup surface the orchestrator needs.
type GeoStore interface {
	CountUniqueOwners(ctx context.Context, region geostore.Region) (int, error)
	RowsIn(ctx context.Context, region geostore.Region, ownerCap int) ([]cadastre.PropertyRow, error)
}

// Enricher attaches registry data to an owner key. A nil result means the
// owner stays unenriched; enrichment never fails a search.
type Enricher interface {
	Enrich(ctx context.Context, ownerID string) *cadastre.CompanyEnrichment
}

// Limits are the boundary constraints applied before any store access.
type Limits struct {
	MaxResults       int
	MaxPolygonPoints int
	MaxRadiusMeters  float64
	EnrichmentCap    int
}

// DefaultLimits returns the service defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxResults:       5000,
		MaxPolygonPoints: 100,
		MaxRadiusMeters:  50000,
		EnrichmentCap:    100,
	}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxResults <= 0 {
		l.MaxResults = d.MaxResults
	}
	if l.MaxPolygonPoints <= 0 {
		l.MaxPolygonPoints = d.MaxPolygonPoints
	}
	if l.MaxRadiusMeters <= 0 {
		l.MaxRadiusMeters = d.MaxRadiusMeters
	}
	if l.EnrichmentCap <= 0 {
		l.EnrichmentCap = d.EnrichmentCap
	}
	return l
}

// Result is the batch search outcome. A Result is always produced; failures
// surface as an empty owner list plus a diagnostic code.
type Result struct {
	Owners              []cadastre.OwnerResult `json:"proprietaires"`
	TotalUniqueInRegion int                    `json:"total_proprietaires_zone"`
	TotalRowsMatched    int                    `json:"total_lignes"`
	TotalEnriched       int                    `json:"total_enrichis"`
	LimitApplied        bool                   `json:"limite_appliquee"`
	Diagnostic          string                 `json:"diagnostic,omitempty"`
}

// StreamStats are the tallies returned after a streaming search.
type StreamStats struct {
	TotalUniqueInRegion int    `json:"total_proprietaires_zone"`
	TotalRowsMatched    int    `json:"total_lignes"`
	TotalEmitted        int    `json:"total_emis"`
	TotalEnriched       int    `json:"total_enrichis"`
	LimitApplied        bool   `json:"limite_appliquee"`
	Diagnostic          string `json:"diagnostic,omitempty"`
}

// Orchestrator coordinates one search end to end. Instances are safe for
// concurrent use; the enricher's limiter is shared across all of them.
type Orchestrator struct {
	store    GeoStore
	enricher Enricher
	limits   Limits
	log      *zap.Logger
}

// New creates an Orchestrator. Zero-valued limits fall back to defaults.
func New(store GeoStore, enricher Enricher, limits Limits) *Orchestrator {
	return &Orchestrator{
		store:    store,
		enricher: enricher,
		limits:   limits.withDefaults(),
		log:      zap.L().With(zap.String("component", "search")),
	}
}

// Search runs a batch lookup. It never returns an error: invalid input and
// store faults both produce an empty Result carrying a diagnostic, so the
// caller always has something to serialize.
func (o *Orchestrator) Search(ctx context.Context, region geostore.Region, limit int) *Result {
	if diag := o.validateRegion(region); diag != "" {
		return &Result{Owners: []cadastre.OwnerResult{}, Diagnostic: diag}
	}

	limit, clamped := o.clampLimit(limit)

	total, err := o.store.CountUniqueOwners(ctx, region)
	if err != nil {
		o.log.Warn("owner count failed", zap.Error(err))
		return &Result{Owners: []cadastre.OwnerResult{}, Diagnostic: DiagStoreError}
	}
	if total == 0 {
		return &Result{Owners: []cadastre.OwnerResult{}, Diagnostic: DiagNoOwners}
	}

	rows, err := o.store.RowsIn(ctx, region, limit)
	if err != nil {
		o.log.Warn("row fetch failed", zap.Error(err))
		return &Result{Owners: []cadastre.OwnerResult{}, Diagnostic: DiagStoreError}
	}

	owners := cadastre.Aggregate(rows)

	enriched := 0
	for i := range owners {
		if i >= o.limits.EnrichmentCap {
			break
		}
		if enr := o.enricher.Enrich(ctx, owners[i].OwnerKey); enr != nil {
			owners[i].Enrichment = enr
			enriched++
		}
	}

	return &Result{
		Owners:              owners,
		TotalUniqueInRegion: total,
		TotalRowsMatched:    len(rows),
		TotalEnriched:       enriched,
		LimitApplied:        clamped || total > limit,
	}
}

// SearchStream runs a lookup emitting each owner through onOwner right after
// that owner's enrichment completes. Enrichment is not capped here. Emission
// stops as soon as ctx is done or onOwner returns an error; no further
// registry calls are issued after that.
func (o *Orchestrator) SearchStream(ctx context.Context, region geostore.Region, limit int, onOwner func(cadastre.OwnerResult) error) *StreamStats {
	if diag := o.validateRegion(region); diag != "" {
		return &StreamStats{Diagnostic: diag}
	}

	limit, clamped := o.clampLimit(limit)

	total, err := o.store.CountUniqueOwners(ctx, region)
	if err != nil {
		o.log.Warn("owner count failed", zap.Error(err))
		return &StreamStats{Diagnostic: DiagStoreError}
	}
	if total == 0 {
		return &StreamStats{Diagnostic: DiagNoOwners}
	}

	rows, err := o.store.RowsIn(ctx, region, limit)
	if err != nil {
		o.log.Warn("row fetch failed", zap.Error(err))
		return &StreamStats{Diagnostic: DiagStoreError}
	}

	owners := cadastre.Aggregate(rows)

	stats := &StreamStats{
		TotalUniqueInRegion: total,
		TotalRowsMatched:    len(rows),
		LimitApplied:        clamped || total > limit,
	}
	for i := range owners {
		if ctx.Err() != nil {
			o.log.Debug("stream cancelled", zap.Int("emitted", stats.TotalEmitted))
			break
		}
		if enr := o.enricher.Enrich(ctx, owners[i].OwnerKey); enr != nil {
			owners[i].Enrichment = enr
			stats.TotalEnriched++
		}
		if err := onOwner(owners[i]); err != nil {
			o.log.Debug("stream consumer gone", zap.Int("emitted", stats.TotalEmitted), zap.Error(err))
			break
		}
		stats.TotalEmitted++
	}
	return stats
}

// validateRegion enforces the boundary constraints. Returns a diagnostic
// string, empty when the region is acceptable.
func (o *Orchestrator) validateRegion(region geostore.Region) string {
	switch r := region.(type) {
	case geostore.Polygon:
		if n := len(r.Points); n < 3 || n > o.limits.MaxPolygonPoints {
			return fmt.Sprintf("%s: polygon must have 3 to %d points, got %d",
				DiagInvalidRegion, o.limits.MaxPolygonPoints, n)
		}
	case geostore.RadiusQuery:
		if r.Meters < 1 || r.Meters > o.limits.MaxRadiusMeters {
			return fmt.Sprintf("%s: radius must be 1 to %.0f meters, got %.0f",
				DiagInvalidRegion, o.limits.MaxRadiusMeters, r.Meters)
		}
	default:
		return fmt.Sprintf("%s: unsupported region type", DiagInvalidRegion)
	}
	return ""
}

func (o *Orchestrator) clampLimit(limit int) (int, bool) {
	if limit <= 0 || limit > o.limits.MaxResults {
		return o.limits.MaxResults, limit > o.limits.MaxResults
	}
	return limit, false
}
