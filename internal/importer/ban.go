package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/proprio-data/cadastre-api/internal/fetcher"
	"github.com/proprio-data/cadastre-api/internal/geostore"
)

// ImportBAN downloads and loads the address base for the given departments
// in parallel, then geocodes every property row that gained an address
// match. Returns the number of properties geocoded.
func (im *Importer) ImportBAN(ctx context.Context, departments []string) (int64, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.parallelism)

	for _, dept := range departments {
		g.Go(func() error {
			return im.importBANDepartment(gctx, dept)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	geocoded, err := im.store.GeocodeFromBAN(ctx)
	if err != nil {
		return 0, err
	}
	im.log.Info("ban geocoding complete", zap.Int64("geocoded", geocoded))
	return geocoded, nil
}

func (im *Importer) importBANDepartment(ctx context.Context, department string) error {
	name := fmt.Sprintf("adresses-%s.csv.gz", department)
	url := strings.TrimSuffix(im.banBaseURL, "/") + "/" + name

	body, err := im.fetch.Download(ctx, url)
	if err != nil {
		return eris.Wrapf(err, "importer: ban department %s", department)
	}
	defer body.Close()

	r, err := fetcher.MaybeGunzip(name, body)
	if err != nil {
		return eris.Wrapf(err, "importer: ban department %s", department)
	}

	n, err := im.loadBAN(ctx, r)
	if err != nil {
		return eris.Wrapf(err, "importer: ban department %s", department)
	}
	return im.store.RecordImport(ctx, "ban", department, n)
}

// loadBAN streams one BAN CSV (semicolon-delimited) into the address table.
// Columns are located by header name, so column reordering across BAN
// releases is harmless.
func (im *Importer) loadBAN(ctx context.Context, r io.Reader) (int64, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	var cols map[string]int
	var (
		batch   []geostore.BANAddress
		total   int64
		skipped int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.store.LoadBANAddresses(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for row := range rowCh {
		if cols == nil {
			header := <-headerCh
			cols = indexColumns(header)
			for _, need := range []string{"numero", "nom_voie", "code_insee", "lon", "lat"} {
				if _, ok := cols[need]; !ok {
					return 0, eris.Errorf("importer: ban file missing column %q", need)
				}
			}
		}

		addr, ok := banAddressFromRow(row, cols)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, addr)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return total, err
	}
	if err := flush(); err != nil {
		return total, err
	}

	if skipped > 0 {
		im.log.Warn("skipped malformed ban rows", zap.Int("skipped", skipped))
	}
	return total, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func banAddressFromRow(row []string, cols map[string]int) (geostore.BANAddress, bool) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(row) {
			return ""
		}
		return row[i]
	}

	lon, err := strconv.ParseFloat(get("lon"), 64)
	if err != nil {
		return geostore.BANAddress{}, false
	}
	lat, err := strconv.ParseFloat(get("lat"), 64)
	if err != nil {
		return geostore.BANAddress{}, false
	}

	commune := get("code_insee")
	street := strings.ToUpper(strings.TrimSpace(get("nom_voie")))
	if commune == "" || street == "" {
		return geostore.BANAddress{}, false
	}

	return geostore.BANAddress{
		CommuneCode: commune,
		Number:      get("numero"),
		StreetName:  street,
		Longitude:   lon,
		Latitude:    lat,
	}, true
}
