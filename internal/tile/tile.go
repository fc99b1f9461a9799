// Package tile provides slippy-map tile coordinate math for the
// Web-Mercator projection used by standard raster tile providers.
package tile

import (
	"fmt"
	"math"
	"strings"
)

// Key identifies one raster tile in the slippy-map scheme.
type Key struct {
	Z int `json:"z"`
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the key in z/x/y form, matching the on-disk layout.
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// BoundingBox is a rectangle in WGS84 degrees. North must be greater
// than South; polar-spanning boxes are not handled.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// FieldError describes a validation failure on one bounding box field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field-level validation failures.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field)
	}
	return "invalid bounding box: " + strings.Join(fields, ", ")
}

// Validate checks that all fields are finite, within WGS84 ranges, and
// that the box is non-degenerate. Malformed input is rejected, never
// clamped.
func (b BoundingBox) Validate() error {
	var errs []FieldError

	check := func(field string, v, min, max float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			errs = append(errs, FieldError{Field: field, Message: "must be a finite number"})
			return
		}
		if v < min || v > max {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("must be between %g and %g", min, max)})
		}
	}

	check("north", b.North, -90, 90)
	check("south", b.South, -90, 90)
	check("east", b.East, -180, 180)
	check("west", b.West, -180, 180)

	if len(errs) == 0 {
		if b.North <= b.South {
			errs = append(errs, FieldError{Field: "north", Message: "must be greater than south"})
		}
		if b.East <= b.West {
			errs = append(errs, FieldError{Field: "east", Message: "must be greater than west"})
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// Rect is the inclusive rectangle of tile columns and rows covering a
// bounding box at one zoom level.
type Rect struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// Width returns the number of columns in the rectangle.
func (r Rect) Width() int { return r.MaxX - r.MinX + 1 }

// Height returns the number of rows in the rectangle.
func (r Rect) Height() int { return r.MaxY - r.MinY + 1 }

// Count returns the number of tiles in the rectangle.
func (r Rect) Count() int { return r.Width() * r.Height() }

// Contains reports whether the key falls inside the rectangle.
func (r Rect) Contains(k Key) bool {
	return k.Z == r.Zoom && k.X >= r.MinX && k.X <= r.MaxX && k.Y >= r.MinY && k.Y <= r.MaxY
}

// ColumnAt converts a longitude to a tile column at the given zoom.
func ColumnAt(lon float64, zoom int) int {
	n := float64(int(1) << zoom)
	x := int(math.Floor((lon + 180.0) / 360.0 * n))
	return clamp(x, zoom)
}

// RowAt converts a latitude to a tile row at the given zoom. Rows
// increase southward.
func RowAt(lat float64, zoom int) int {
	n := float64(int(1) << zoom)
	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))
	return clamp(y, zoom)
}

func clamp(v, zoom int) int {
	if v < 0 {
		return 0
	}
	if max := (1 << zoom) - 1; v > max {
		return max
	}
	return v
}

// RectFor returns the tile rectangle covering the bounding box at the
// given zoom. The caller is expected to have validated the box.
func RectFor(b BoundingBox, zoom int) Rect {
	return Rect{
		Zoom: zoom,
		MinX: ColumnAt(b.West, zoom),
		MaxX: ColumnAt(b.East, zoom),
		MinY: RowAt(b.North, zoom),
		MaxY: RowAt(b.South, zoom),
	}
}

// CountTiles returns the total number of tiles covering the bounding
// box across the inclusive zoom range.
func CountTiles(b BoundingBox, minZoom, maxZoom int) int {
	total := 0
	for z := minZoom; z <= maxZoom; z++ {
		total += RectFor(b, z).Count()
	}
	return total
}

// ValidateZoomRange checks a zoom range for the supported 0-22 span.
func ValidateZoomRange(minZoom, maxZoom int) error {
	if minZoom < 0 || maxZoom > 22 || minZoom > maxZoom {
		return &ValidationError{Errors: []FieldError{
			{Field: "zoom", Message: fmt.Sprintf("range %d-%d is not within 0-22", minZoom, maxZoom)},
		}}
	}
	return nil
}
