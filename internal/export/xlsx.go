// Package export renders batch search results as spreadsheet files.
package export

import (
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/proprio-data/cadastre-api/internal/search"
)

var xlsxHeader = []string{
	"cle_proprietaire", "siren", "denomination", "forme_juridique",
	"adresse_complete", "reference_complete", "nombre_lots",
	"longitude", "latitude",
}

// WriteXLSX writes one row per (owner, address, cadastral reference) to w.
// Enrichment columns stay empty for unenriched owners.
func WriteXLSX(w io.Writer, res *search.Result) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("proprietaires")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range xlsxHeader {
		header.AddCell().SetString(h)
	}

	for _, owner := range res.Owners {
		legalForm := ""
		if owner.Enrichment != nil {
			legalForm = owner.Enrichment.LegalForm
		}
		lon, lat := "", ""
		if owner.Longitude != nil {
			lon = strconv.FormatFloat(*owner.Longitude, 'f', -1, 64)
		}
		if owner.Latitude != nil {
			lat = strconv.FormatFloat(*owner.Latitude, 'f', -1, 64)
		}

		for _, prop := range owner.Properties {
			for _, ref := range prop.References {
				row := sheet.AddRow()
				row.AddCell().SetString(owner.OwnerKey)
				row.AddCell().SetString(owner.Siren)
				row.AddCell().SetString(owner.Denomination)
				row.AddCell().SetString(legalForm)
				row.AddCell().SetString(prop.Address.Complete)
				row.AddCell().SetString(ref.Complete)
				row.AddCell().SetInt(prop.LotCount)
				row.AddCell().SetString(lon)
				row.AddCell().SetString(lat)
			}
		}
	}

	if err := file.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}
