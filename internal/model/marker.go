// Package model holds the core marker types shared by the store, filter and
// storage layers.
package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CreatedAtLayout is the fixed local-time format markers carry for display and
// date filtering. No timezone is recorded.
const CreatedAtLayout = "2006/01/02 15:04:05"

// ErrInvalidPosition is returned when a latitude/longitude pair is out of range.
var ErrInvalidPosition = errors.New("invalid position provided")

// ErrEmptyTitle is returned when a marker is created without a display title.
var ErrEmptyTitle = errors.New("marker title must not be empty")

// Position is a WGS84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the position lies within [-90,90] x [-180,180].
func (p Position) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// ColorHue is a rendering tag from a small fixed palette. It never participates
// in filtering.
type ColorHue float64

// Marker pin palette.
const (
	HueRed     ColorHue = 0
	HueOrange  ColorHue = 30
	HueYellow  ColorHue = 60
	HueGreen   ColorHue = 120
	HueCyan    ColorHue = 180
	HueAzure   ColorHue = 210
	HueViolet  ColorHue = 270
	HueMagenta ColorHue = 300
)

// Palette lists the selectable marker hues in display order.
var Palette = []ColorHue{
	HueRed, HueOrange, HueYellow, HueGreen, HueCyan, HueAzure, HueViolet, HueMagenta,
}

// Marker represents one user-placed map pin. Values are immutable by
// convention; edits produce a new value carrying the same ID.
type Marker struct {
	ID        string   `json:"id"`
	Position  Position `json:"position"`
	Title     string   `json:"title"`
	Memo      string   `json:"memo,omitempty"`
	CreatedAt string   `json:"createdAt"`
	ColorHue  ColorHue `json:"colorHue"`
	ImageURI  string   `json:"imageUri,omitempty"`
	VideoURI  string   `json:"videoUri,omitempty"`
}

// New creates a marker with a fresh id and a CreatedAt stamp for the current
// local time.
func New(pos Position, title, memo string, hue ColorHue) (Marker, error) {
	if !pos.Valid() {
		return Marker{}, ErrInvalidPosition
	}
	if title == "" {
		return Marker{}, ErrEmptyTitle
	}
	return Marker{
		ID:        uuid.NewString(),
		Position:  pos,
		Title:     title,
		Memo:      memo,
		CreatedAt: time.Now().Format(CreatedAtLayout),
		ColorHue:  hue,
	}, nil
}

// CreatedTime parses the CreatedAt stamp. ok is false when the stamp is
// malformed; callers decide what a missing date means (the filter excludes
// such markers from any date-filtered result).
func (m Marker) CreatedTime() (time.Time, bool) {
	t, err := time.ParseInLocation(CreatedAtLayout, m.CreatedAt, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
