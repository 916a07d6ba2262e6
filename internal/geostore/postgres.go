package geostore

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/proprio-data/cadastre-api/internal/cadastre"
	"github.com/proprio-data/cadastre-api/internal/db"
)

// ownerKeyExpr mirrors cadastre.PropertyRow.OwnerKey in SQL: SIREN when
// present, then denomination, then the unknown sentinel.
const ownerKeyExpr = `COALESCE(NULLIF(siren, ''), NULLIF(denomination, ''), 'inconnu')`

var propertyColumns = []string{
	"siren", "denomination",
	"departement", "code_commune", "prefixe", "section", "numero_plan",
	"numero_voie", "type_voie", "nom_voie", "nom_commune",
}

// Store implements property lookups over Postgres with PostGIS.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store on the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// CountUniqueOwners returns the number of distinct owner keys with at least
// one property inside region.
func (s *Store) CountUniqueOwners(ctx context.Context, region Region) (int, error) {
	pred, args, err := region.predicate(1)
	if err != nil {
		return 0, err
	}

	sql := fmt.Sprintf(
		`SELECT COUNT(DISTINCT %s) FROM cadastre.properties WHERE %s`,
		ownerKeyExpr, pred,
	)
	var n int
	if err := s.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "geostore: count unique owners")
	}
	return n, nil
}

// RowsIn returns every property row belonging to the first ownerCap distinct
// owner keys inside region. The cap is applied to owners, never to rows, so
// an owner's holdings are returned whole or not at all. Rows come back
// grouped by owner key in a stable order.
func (s *Store) RowsIn(ctx context.Context, region Region, ownerCap int) ([]cadastre.PropertyRow, error) {
	pred, args, err := region.predicate(1)
	if err != nil {
		return nil, err
	}
	capIdx := len(args) + 1
	args = append(args, ownerCap)

	sql := fmt.Sprintf(`
		SELECT siren, denomination,
		       departement, code_commune, prefixe, section, numero_plan,
		       numero_voie, type_voie, nom_voie, nom_commune,
		       ST_X(geom), ST_Y(geom)
		FROM cadastre.properties
		WHERE %s
		  AND %s IN (
		      SELECT DISTINCT %s
		      FROM cadastre.properties
		      WHERE %s
		      ORDER BY 1
		      LIMIT $%d
		  )
		ORDER BY %s, id
	`, pred, ownerKeyExpr, ownerKeyExpr, pred, capIdx, ownerKeyExpr)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "geostore: query rows in region")
	}
	defer rows.Close()

	var out []cadastre.PropertyRow
	for rows.Next() {
		var r cadastre.PropertyRow
		if err := rows.Scan(
			&r.Siren, &r.Denomination,
			&r.Department, &r.CommuneCode, &r.Prefix, &r.Section, &r.PlanNumber,
			&r.StreetNumber, &r.StreetType, &r.StreetName, &r.CommuneName,
			&r.Longitude, &r.Latitude,
		); err != nil {
			return nil, eris.Wrap(err, "geostore: scan property row")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geostore: iterate property rows")
	}
	return out, nil
}

// CopyProperties bulk-loads property rows via COPY. Row values must follow
// propertyColumns order.
func (s *Store) CopyProperties(ctx context.Context, rows [][]any) (int64, error) {
	n, err := db.CopyInto(ctx, s.pool, "cadastre", "properties", propertyColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "geostore: copy properties")
	}
	return n, nil
}

// Parcel is one cadastral parcel polygon keyed by its national identifier.
type Parcel struct {
	IDU         string
	Department  string
	CommuneCode string
	Prefix      string
	Section     string
	PlanNumber  string
	GeomEWKB    []byte
}

// UpsertParcel inserts or refreshes one parcel geometry.
func (s *Store) UpsertParcel(ctx context.Context, p *Parcel) error {
	sql := `
		INSERT INTO cadastre.parcels (idu, departement, code_commune, prefixe, section, numero_plan, geom)
		VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromEWKB($7))
		ON CONFLICT (idu) DO UPDATE SET
			geom = EXCLUDED.geom,
			updated_at = now()
	`
	_, err := s.pool.Exec(ctx, sql,
		p.IDU, p.Department, p.CommuneCode, p.Prefix, p.Section, p.PlanNumber, p.GeomEWKB,
	)
	return eris.Wrap(err, "geostore: upsert parcel")
}

// BANAddress is one geocoded address from the national address base.
type BANAddress struct {
	CommuneCode string
	Number      string
	StreetName  string
	Longitude   float64
	Latitude    float64
}

// LoadBANAddresses bulk-upserts geocoded addresses for later matching.
func (s *Store) LoadBANAddresses(ctx context.Context, addrs []BANAddress) (int64, error) {
	rows := make([][]any, len(addrs))
	for i, a := range addrs {
		rows[i] = []any{a.CommuneCode, a.Number, a.StreetName, a.Longitude, a.Latitude}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Schema:       "cadastre",
		Table:        "ban_addresses",
		Columns:      []string{"code_commune", "numero", "nom_voie", "longitude", "latitude"},
		ConflictKeys: []string{"code_commune", "numero", "nom_voie"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "geostore: load ban addresses")
	}
	return n, nil
}

// GeocodeFromBAN fills in the geometry of properties whose address matches a
// loaded address record. Only rows without a geometry are touched. Returns
// the number of properties geocoded.
func (s *Store) GeocodeFromBAN(ctx context.Context) (int64, error) {
	sql := `
		UPDATE cadastre.properties p
		SET geom = ST_SetSRID(ST_MakePoint(b.longitude, b.latitude), 4326),
		    updated_at = now()
		FROM cadastre.ban_addresses b
		WHERE p.geom IS NULL
		  AND b.code_commune = p.code_commune
		  AND b.numero = p.numero_voie
		  AND b.nom_voie = upper(p.nom_voie)
	`
	tag, err := s.pool.Exec(ctx, sql)
	if err != nil {
		return 0, eris.Wrap(err, "geostore: geocode from ban")
	}
	return tag.RowsAffected(), nil
}

// RecordImport writes one row of import bookkeeping.
func (s *Store) RecordImport(ctx context.Context, source, department string, rowsLoaded int64) error {
	sql := `
		INSERT INTO cadastre.import_log (source, departement, rows_loaded)
		VALUES ($1, $2, $3)
	`
	_, err := s.pool.Exec(ctx, sql, source, department, rowsLoaded)
	return eris.Wrap(err, "geostore: record import")
}
