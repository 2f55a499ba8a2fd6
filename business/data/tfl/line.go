// Package tfl contains the data model for tracking London transit vehicles between stations
package tfl

import (
	"errors"
	"fmt"
	"strings"
)

// Line identifies a transit line as used by the TfL unified api
type Line string

const (
	Tram               Line = "tram"
	DLR                Line = "dlr"
	Bakerloo           Line = "bakerloo"
	Central            Line = "central"
	District           Line = "district"
	HammersmithAndCity Line = "hammersmith-city"
	Jubilee            Line = "jubilee"
	Metropolitan       Line = "metropolitan"
	Northern           Line = "northern"
	Piccadilly         Line = "piccadilly"
	Victoria           Line = "victoria"
	WaterlooAndCity    Line = "waterloo-city"
)

// Lines lists every Line known to the tracker, in the order they are polled
var Lines = []Line{
	Tram,
	DLR,
	Bakerloo,
	Central,
	District,
	HammersmithAndCity,
	Jubilee,
	Metropolitan,
	Northern,
	Piccadilly,
	Victoria,
	WaterlooAndCity,
}

// ErrUnknownLine is returned when a line code is not one of Lines
var ErrUnknownLine = errors.New("unknown line")

// NormalizeLine converts a line display name ("Metropolitan", "Hammersmith & City") to its line code.
// The result is not checked against Lines.
func NormalizeLine(name string) Line {
	code := strings.ToLower(strings.TrimSpace(name))
	return Line(strings.ReplaceAll(code, " & ", "-"))
}

// ParseLine converts a line code or display name to one of Lines
func ParseLine(name string) (Line, error) {
	line := NormalizeLine(name)
	if !line.IsKnown() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLine, name)
	}
	return line, nil
}

// ParseLines converts a list of line codes, failing on the first unknown line
func ParseLines(names []string) ([]Line, error) {
	lines := make([]Line, 0, len(names))
	for _, name := range names {
		line, err := ParseLine(name)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// IsKnown returns true if l is present in Lines
func (l Line) IsKnown() bool {
	for _, known := range Lines {
		if l == known {
			return true
		}
	}
	return false
}

func (l Line) String() string {
	return string(l)
}
