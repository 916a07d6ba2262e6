// Package importer loads the MAJIC ownership files, the BAN address base,
// and the cadastre parcel shapefiles into the store.
package importer

import (
	"context"

	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/fetcher"
	"github.com/proprio-data/cadastre-api/internal/geostore"
)

// batchSize bounds memory while loading multi-million row departments.
const batchSize = 5000

// Store is the persistence surface the importers write through.
type Store interface {
	CopyProperties(ctx context.Context, rows [][]any) (int64, error)
	UpsertParcel(ctx context.Context, p *geostore.Parcel) error
	LoadBANAddresses(ctx context.Context, addrs []geostore.BANAddress) (int64, error)
	GeocodeFromBAN(ctx context.Context) (int64, error)
	RecordImport(ctx context.Context, source, department string, rowsLoaded int64) error
}

// Importer runs dataset imports against a Store.
type Importer struct {
	store       Store
	fetch       fetcher.Fetcher
	banBaseURL  string
	parallelism int
	log         *zap.Logger
}

// Options configures an Importer.
type Options struct {
	BANBaseURL  string
	Parallelism int
}

// New creates an Importer.
func New(store Store, fetch fetcher.Fetcher, opts Options) *Importer {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &Importer{
		store:       store,
		fetch:       fetch,
		banBaseURL:  opts.BANBaseURL,
		parallelism: opts.Parallelism,
		log:         zap.L().With(zap.String("component", "importer")),
	}
}
