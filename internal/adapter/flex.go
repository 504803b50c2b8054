package adapter

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The provider is loose about types: ids arrive as strings or numbers,
// timestamps sometimes as numeric strings, booleans sometimes as 0/1. The
// flex types below decode whatever shows up and never fail, so one odd field
// cannot drop an otherwise usable item.

// flexString accepts a JSON string or number. A numeric zero, null and
// booleans decode to "".
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*s = ""
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err == nil {
			*s = flexString(v)
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if f, err := strconv.ParseFloat(string(b), 64); err == nil && f == 0 {
			return nil
		}
		*s = flexString(b)
	}
	return nil
}

// flexInt accepts a JSON number, truncated toward zero, or a string holding
// an integer. Anything else decodes to 0.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = 0
	if len(b) == 0 {
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			*n = flexInt(i)
		}
		return nil
	}
	if i, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*n = flexInt(i)
		return nil
	}
	if f, err := strconv.ParseFloat(string(b), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		*n = flexInt(int64(f))
	}
	return nil
}

// flexBool accepts true/false, a number (nonzero is true) or a string
// (anything but "", "false" and "0" is true).
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = false
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case 't':
		*v = string(b) == "true"
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			s = strings.ToLower(strings.TrimSpace(s))
			*v = s != "" && s != "false" && s != "0"
		}
	default:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			*v = f != 0
		}
	}
	return nil
}

// firstNonEmpty returns the first value that is not "".
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// trimmed picks the first non-empty raw value and then trims it. A value of
// only whitespace still wins over later candidates.
func trimmed(vals ...string) string {
	return strings.TrimSpace(firstNonEmpty(vals...))
}
