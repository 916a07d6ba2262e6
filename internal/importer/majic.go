package importer

import (
	"context"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/proprio-data/cadastre-api/internal/fetcher"
)

// majicFieldCount is the number of columns the departmental owner extract
// carries: owner identity, cadastral reference, and address.
const majicFieldCount = 11

// ImportMAJIC streams one departmental MAJIC owner file (semicolon-delimited,
// with a header row) into cadastre.properties. Rows with too few fields are
// skipped and counted. Returns the number of rows loaded.
func (im *Importer) ImportMAJIC(ctx context.Context, r io.Reader, department string) (int64, error) {
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		Delimiter: ';',
		HasHeader: true,
		TrimSpace: true,
	})

	var (
		batch   [][]any
		total   int64
		skipped int
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := im.store.CopyProperties(ctx, batch)
		if err != nil {
			return err
		}
		total += n
		batch = batch[:0]
		return nil
	}

	for row := range rowCh {
		if len(row) < majicFieldCount {
			skipped++
			continue
		}
		batch = append(batch, []any{
			row[0], row[1], // siren, denomination
			row[2], row[3], row[4], row[5], row[6], // reference columns
			row[7], row[8], row[9], row[10], // address columns
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := <-errCh; err != nil {
		return total, eris.Wrapf(err, "importer: majic department %s", department)
	}
	if err := flush(); err != nil {
		return total, err
	}

	if skipped > 0 {
		im.log.Warn("skipped malformed majic rows",
			zap.String("department", department),
			zap.Int("skipped", skipped),
		)
	}

	if err := im.store.RecordImport(ctx, "majic", department, total); err != nil {
		return total, err
	}

	im.log.Info("majic import complete",
		zap.String("department", department),
		zap.Int64("rows", total),
	)
	return total, nil
}
