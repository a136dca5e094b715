package server

import (
	"errors"
	"slices"

	"github.com/mailru/easyjson/jlexer"
)

var errShortPoint = errors.New("point needs at least 2 coordinates")

// unmarshalPointsListFast decodes a JSON array of [x, y] pairs into result.
// Coordinates after the second are ignored.
func unmarshalPointsListFast(data []byte, result *[][2]float64) error {
	in := jlexer.Lexer{Data: data}

	*result = slices.Grow(*result, len(data)/16) // n/16 is a heuristic

	in.Delim('[')
	for !in.IsDelim(']') {
		var p [2]float64
		n := 0

		in.Delim('[')
		for !in.IsDelim(']') {
			v := in.Float64()
			if n < len(p) {
				p[n] = v
			}
			n++
			in.WantComma()
		}
		in.Delim(']')

		if n < len(p) && in.Ok() {
			in.AddError(errShortPoint)
		}
		*result = append(*result, p)
		in.WantComma()
	}
	in.Delim(']')
	in.Consumed()

	return in.Error()
}
