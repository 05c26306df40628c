package progress

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// maxExactFloat is the largest magnitude at which every integer is
// representable in a float64.
const maxExactFloat = 1 << 53

// ID is an identifier as it arrives from heterogeneous upstream data:
// a JSON number, a numeric string, or garbage. Two IDs match when both
// normalize to the same integer.
type ID string

// IntID builds an ID from an integer key.
func IntID(n int) ID {
	return ID(strconv.Itoa(n))
}

// Int returns the normalized integer value. ok is false for empty,
// non-numeric or fractional identifiers.
func (id ID) Int() (n int64, ok bool) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	// Numbers decoded through float64 upstream show up as "12.0" or "1e2".
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > maxExactFloat || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// Matches reports whether both identifiers normalize to the same integer.
func (id ID) Matches(other ID) bool {
	a, ok := id.Int()
	if !ok {
		return false
	}
	b, ok := other.Int()
	return ok && a == b
}

// UnmarshalJSON accepts both `12` and `"12"`.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(data)
	return nil
}

// MarshalJSON emits a JSON number when the identifier is numeric.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, ok := id.Int(); ok {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}
