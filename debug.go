package kaleido

import (
	"net/url"
	"strings"
)

// DebugFlags are opt-in diagnostics. The zero value disables everything.
type DebugFlags struct {
	// Geometry logs lens values at debug level on every frame.
	Geometry bool

	// PreviewSector renders only the primary wedge in the preview.
	PreviewSector bool
}

// ParseDebugFlags reads flags from a URL query string. Recognized keys are
// kaleidoDebug=geometry, debugGeometry=1 and previewSector=1. Anything else
// is ignored.
func ParseDebugFlags(rawQuery string) DebugFlags {
	q, _ := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))

	var f DebugFlags
	for _, v := range q["kaleidoDebug"] {
		if strings.EqualFold(v, "geometry") {
			f.Geometry = true
		}
	}
	if truthy(q.Get("debugGeometry")) {
		f.Geometry = true
	}
	f.PreviewSector = truthy(q.Get("previewSector"))
	return f
}

// ParseDebugList reads a comma-separated list such as "geometry,sector",
// the form used in config files and on the command line.
func ParseDebugList(s string) DebugFlags {
	var f DebugFlags
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "geometry":
			f.Geometry = true
		case "sector", "previewsector":
			f.PreviewSector = true
		}
	}
	return f
}

// Merge returns the union of f and o.
func (f DebugFlags) Merge(o DebugFlags) DebugFlags {
	return DebugFlags{
		Geometry:      f.Geometry || o.Geometry,
		PreviewSector: f.PreviewSector || o.PreviewSector,
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func logGeometry(l Lens, rotationDegrees float64, backend string) {
	Logger().Debug("kaleido: lens geometry",
		"backend", backend,
		"width", l.Width,
		"height", l.Height,
		"segments", l.Segments,
		"segmentAngle", l.SegmentAngle,
		"rotationDegrees", rotationDegrees,
		"sectorStart", l.SectorStart,
		"sectorEnd", l.SectorEnd,
		"centerX", l.CenterX,
		"centerY", l.CenterY,
	)
}
