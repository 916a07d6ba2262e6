package importer

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/geostore"
)

// ImportParcels loads one departmental parcel shapefile. Each record's
// polygon is stored as an EWKB MultiPolygon keyed by the parcel IDU.
// Records without a usable geometry are skipped and counted.
func (im *Importer) ImportParcels(ctx context.Context, shpPath, department string) (int64, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return 0, eris.Wrapf(err, "importer: open shapefile %s", shpPath)
	}
	defer reader.Close()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		fieldIdx[strings.ToLower(f.String())] = i
	}

	attr := func(row int, name string) string {
		i, ok := fieldIdx[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(reader.ReadAttribute(row, i))
	}

	var total int64
	skipped := 0
	for row := 0; reader.Next(); row++ {
		if ctx.Err() != nil {
			return total, eris.Wrap(ctx.Err(), "importer: parcels cancelled")
		}

		_, shape := reader.Shape()
		raw, err := encodeParcelGeom(shape)
		if err != nil {
			return total, err
		}
		if raw == nil {
			skipped++
			continue
		}

		idu := attr(row, "id")
		if idu == "" {
			skipped++
			continue
		}

		p := &geostore.Parcel{
			IDU:         idu,
			Department:  department,
			CommuneCode: attr(row, "commune"),
			Prefix:      attr(row, "prefixe"),
			Section:     attr(row, "section"),
			PlanNumber:  attr(row, "numero"),
			GeomEWKB:    raw,
		}
		if err := im.store.UpsertParcel(ctx, p); err != nil {
			return total, err
		}
		total++
	}

	if skipped > 0 {
		im.log.Warn("skipped parcel records",
			zap.String("department", department),
			zap.Int("skipped", skipped),
		)
	}

	if err := im.store.RecordImport(ctx, "parcels", department, total); err != nil {
		return total, err
	}

	im.log.Info("parcel import complete",
		zap.String("department", department),
		zap.Int64("parcels", total),
	)
	return total, nil
}
