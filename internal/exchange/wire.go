package exchange

import (
	"encoding/json"
	"strconv"

	"TickFeed/pkg/fixed"
)

// Venue REST responses mix quoted decimal strings and bare JSON numbers
// inside the same candle row. These cell readers accept either form and
// keep the decimal literal intact so values reach the fixed-point parser
// without a float round-trip.

// CellString returns the literal content of one row cell.
func CellString(raw json.RawMessage) (string, bool) {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String(), true
	}
	return "", false
}

// CellInt reads a cell holding an integer (quoted or bare).
func CellInt(raw json.RawMessage) (int64, bool) {
	s, ok := CellString(raw)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	return v, err == nil
}

// CellFx reads a cell holding a decimal into fixed point.
func CellFx(raw json.RawMessage) (fixed.Fx, bool) {
	s, ok := CellString(raw)
	if !ok {
		return 0, false
	}
	return fixed.Parse(s)
}
