// Package geostore is the PostGIS adapter for cadastral property lookups.
package geostore

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// ErrInvalidRegion is returned when a region cannot be turned into a valid
// PostGIS geometry.
var ErrInvalidRegion = eris.New("geostore: invalid region")

// Point is a WGS84 coordinate.
type Point struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Region is a geographic search area. Implementations produce a SQL predicate
// over the geom column plus its bound arguments; argIdx is the placeholder
// index the predicate starts at.
type Region interface {
	predicate(argIdx int) (string, []any, error)
}

// Polygon is a closed ring of WGS84 points. The ring is closed automatically
// when the last point differs from the first.
type Polygon struct {
	Points []Point
}

// Validate checks the polygon has enough points to bound an area.
func (p Polygon) Validate() error {
	if len(p.Points) < 3 {
		return eris.Wrapf(ErrInvalidRegion, "polygon has %d points, need at least 3", len(p.Points))
	}
	return nil
}

func (p Polygon) predicate(argIdx int) (string, []any, error) {
	if err := p.Validate(); err != nil {
		return "", nil, err
	}

	ring := make([]geom.Coord, 0, len(p.Points)+1)
	for _, pt := range p.Points {
		ring = append(ring, geom.Coord{pt.Longitude, pt.Latitude})
	}
	if first, last := p.Points[0], p.Points[len(p.Points)-1]; first != last {
		ring = append(ring, geom.Coord{first.Longitude, first.Latitude})
	}

	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{ring})
	poly.SetSRID(4326)

	raw, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return "", nil, eris.Wrap(ErrInvalidRegion, err.Error())
	}

	return fmt.Sprintf("ST_Contains(ST_GeomFromEWKB($%d), geom)", argIdx), []any{raw}, nil
}

// RadiusQuery selects everything within Meters of Center, measured on the
// geography (great-circle distance).
type RadiusQuery struct {
	Center Point
	Meters float64
}

// Validate checks the radius is positive.
func (r RadiusQuery) Validate() error {
	if r.Meters <= 0 {
		return eris.Wrapf(ErrInvalidRegion, "radius %f must be positive", r.Meters)
	}
	return nil
}

func (r RadiusQuery) predicate(argIdx int) (string, []any, error) {
	if err := r.Validate(); err != nil {
		return "", nil, err
	}
	pred := fmt.Sprintf(
		"ST_DWithin(geom::geography, ST_SetSRID(ST_MakePoint($%d, $%d), 4326)::geography, $%d)",
		argIdx, argIdx+1, argIdx+2,
	)
	return pred, []any{r.Center.Longitude, r.Center.Latitude, r.Meters}, nil
}
