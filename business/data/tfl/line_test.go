package tfl

import (
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		give    string
		want    Line
		wantErr bool
	}{
		{name: "line code", give: "metropolitan", want: Metropolitan},
		{name: "display name", give: "Metropolitan", want: Metropolitan},
		{name: "surrounding space", give: " victoria ", want: Victoria},
		{name: "ampersand in display name", give: "Hammersmith & City", want: HammersmithAndCity},
		{name: "waterloo and city", give: "Waterloo & City", want: WaterlooAndCity},
		{name: "dlr", give: "DLR", want: DLR},
		{name: "unknown line", give: "overground", wantErr: true},
		{name: "empty", give: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, err := ParseLine(tt.give)
			if tt.wantErr {
				is.True(errors.Is(err, ErrUnknownLine))
				return
			}
			is.NoErr(err)
			is.Equal(got, tt.want)
		})
	}
}

func TestParseLines(t *testing.T) {
	is := is.New(t)

	lines, err := ParseLines([]string{"tram", "Jubilee"})
	is.NoErr(err)
	is.Equal(lines, []Line{Tram, Jubilee})

	_, err = ParseLines([]string{"tram", "elizabeth"})
	is.True(errors.Is(err, ErrUnknownLine))
}

func TestLine_IsKnown(t *testing.T) {
	is := is.New(t)
	for _, line := range Lines {
		is.True(line.IsKnown())
	}
	is.True(!Line("Metropolitan").IsKnown())
	is.True(!Line("").IsKnown())
}
