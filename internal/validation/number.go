package validation

import (
	"math"
	"strconv"
	"strings"
)

// FlexInt is an integer field that clients may send as a JSON number, as an
// integral float such as 10.0 or 1e1, or as a numeric string. Decoding never
// fails, so a bad value is reported together with the other field errors.
type FlexInt struct {
	raw string
}

// FlexIntOf wraps n as if it had been decoded from a JSON number.
func FlexIntOf(n int64) FlexInt {
	return FlexInt{raw: strconv.FormatInt(n, 10)}
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	f.raw = strings.TrimSpace(string(data))
	return nil
}

// Present reports whether a non-empty, non-null value was supplied.
func (f FlexInt) Present() bool {
	return f.raw != "" && f.raw != "null" && f.raw != `""`
}

// Int returns the value when it is a whole number.
func (f FlexInt) Int() (int64, bool) {
	if !f.Present() {
		return 0, false
	}

	if strings.HasPrefix(f.raw, `"`) {
		s, err := strconv.Unquote(f.raw)
		if err != nil {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}

	if n, err := strconv.ParseInt(f.raw, 10, 64); err == nil {
		return n, true
	}
	v, err := strconv.ParseFloat(f.raw, 64)
	if err != nil || math.IsInf(v, 0) || v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, false
	}
	return int64(v), true
}

// String returns the value as received, with string quotes removed.
func (f FlexInt) String() string {
	if s, err := strconv.Unquote(f.raw); err == nil {
		return s
	}
	return f.raw
}
