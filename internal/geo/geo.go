package geo

import (
	"errors"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/mapmarks/engine/internal/model"
)

// GEO POINTS
// Marker positions are WGS84 lat/lon. For database storage positions are kept
// in the WKB format so SQLite (no spatial awareness) and Postgres share one
// column encoding. Viewport containment stays in plain lat/lon space;
// rectangles are antimeridian-naive, matching the map widget's camera bounds.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ErrInvalidBounds is returned when a bounds rectangle has out-of-range corners
var ErrInvalidBounds = errors.New("invalid bounds provided")

// Bounds is the geographic rectangle currently visible on the map display,
// identified by its southwest and northeast corners.
type Bounds struct {
	SouthWest model.Position
	NorthEast model.Position
}

// NewBounds builds a bounds rectangle from its corners.
func NewBounds(sw, ne model.Position) (Bounds, error) {
	if !sw.Valid() || !ne.Valid() {
		return Bounds{}, ErrInvalidBounds
	}
	return Bounds{SouthWest: sw, NorthEast: ne}, nil
}

// Contains reports whether p lies within the closed rectangle, corners
// included. No antimeridian wraparound handling.
func (b Bounds) Contains(p model.Position) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

// PositionFromString parses a string in the format "lat,lon" into a Position.
func PositionFromString(coords string) (model.Position, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return model.Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return model.Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return model.Position{}, ErrInvalidCoordinates
	}
	p := model.Position{Lat: lat, Lon: lon}
	if !p.Valid() {
		return model.Position{}, ErrInvalidCoordinates
	}
	return p, nil
}

// BoundsFromString parses "swLat,swLon;neLat,neLon" into a Bounds. This is the
// form the operator CLI accepts.
func BoundsFromString(s string) (Bounds, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 2 {
		return Bounds{}, ErrInvalidBounds
	}
	sw, err := PositionFromString(parts[0])
	if err != nil {
		return Bounds{}, ErrInvalidBounds
	}
	ne, err := PositionFromString(parts[1])
	if err != nil {
		return Bounds{}, ErrInvalidBounds
	}
	return NewBounds(sw, ne)
}

// PointWKB encodes a position as a WKB point for database storage.
func PointWKB(p model.Position) []byte {
	point := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: p.Lon, Y: p.Lat},
			Type: geom.DimXY,
		},
	)
	return point.AsGeometry().AsBinary()
}

// PositionFromWKB decodes a WKB point back into a position.
func PositionFromWKB(wkb []byte) (model.Position, error) {
	g, err := geom.UnmarshalWKB(wkb)
	if err != nil {
		return model.Position{}, ErrInvalidCoordinates
	}
	if !g.IsPoint() {
		return model.Position{}, ErrInvalidCoordinates
	}
	coords, ok := g.MustAsPoint().Coordinates()
	if !ok {
		return model.Position{}, ErrInvalidCoordinates
	}
	return model.Position{Lat: coords.Y, Lon: coords.X}, nil
}

// WebMercator converts a WGS84 position to EPSG:3857 meters for tile math in
// the rendering layer.
func WebMercator(p model.Position) (x, y float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(p.Lon, p.Lat, 0)
	return x, y
}
