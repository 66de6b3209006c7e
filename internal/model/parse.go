package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseCoordinatePair parses a bracketed coordinate string of the form
// "[lat, lon]" as found in the business dataset's coordinates column.
// Malformed input wraps ErrInvalidArgument.
func ParseCoordinatePair(s string) (Coordinate, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return Coordinate{}, eris.Wrapf(ErrInvalidArgument, "model: coordinate pair %q missing brackets", s)
	}

	inner := trimmed[1 : len(trimmed)-1]
	parts := strings.Split(inner, ",")
	if len(parts) != 2 {
		return Coordinate{}, eris.Wrapf(ErrInvalidArgument, "model: coordinate pair %q has %d fields, want 2", s, len(parts))
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, eris.Wrapf(ErrInvalidArgument, "model: coordinate pair %q latitude: %v", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, eris.Wrapf(ErrInvalidArgument, "model: coordinate pair %q longitude: %v", s, err)
	}

	c := Coordinate{Latitude: lat, Longitude: lon}
	if !c.Valid() {
		return Coordinate{}, eris.Wrapf(ErrInvalidArgument, "model: coordinate pair %q out of WGS84 range", s)
	}
	return c, nil
}
