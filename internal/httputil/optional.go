package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

// OptionalString tracks presence and value for JSON PATCH semantics (RFC 7396).
//   - Present=false: field absent from JSON (don't change)
//   - Present=true, Value=nil: field is JSON null
//   - Present=true, Value=&"text": field has value
type OptionalString struct {
	Present bool
	Value   *string
}

// UnmarshalJSON implements json.Unmarshaler.
// When this method is called, the field was present in the JSON.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true

	if string(bytes.TrimSpace(data)) == "null" {
		o.Value = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// LooseString accepts any JSON value and keeps the text a JavaScript
// String(v) call would produce: strings unquoted, numbers in shortest form
// (1.0 → "1", 1e2 → "100"), booleans as true/false, arrays joined with
// commas and objects as "[object Object]". Null leaves Valid false.
type LooseString struct {
	Valid bool
	Value string
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *LooseString) UnmarshalJSON(data []byte) error {
	*l = LooseString{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := jsString(v)
	if err != nil {
		return err
	}
	*l = LooseString{Valid: true, Value: s}
	return nil
}

func jsString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return "", err
		}
		return jsNumber(f), nil
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			p, err := jsString(e)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return strings.Join(parts, ","), nil
	default:
		return "[object Object]", nil
	}
}

// jsNumber formats f the way ECMAScript Number::toString does
func jsNumber(f float64) string {
	switch {
	case f == 0:
		return "0"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	// shortest round-trip digits as d.ddde±x
	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, exp, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	x, _ := strconv.Atoi(exp)
	k := len(digits)
	n := x + 1

	switch {
	case k <= n && n <= 21:
		return sign + digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		return sign + digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		return sign + "0." + strings.Repeat("0", -n) + digits
	}

	out := digits[:1]
	if k > 1 {
		out += "." + digits[1:]
	}
	if n-1 >= 0 {
		return sign + out + "e+" + strconv.Itoa(n-1)
	}
	return sign + out + "e-" + strconv.Itoa(1-n)
}

// Truncate returns the value cut to at most maxUnits UTF-16 code units,
// the length a JavaScript string reports. A surrogate pair that would be
// split at the limit is dropped whole.
// The second result is false when the value was null or absent.
func (l LooseString) Truncate(maxUnits int) (string, bool) {
	if !l.Valid {
		return "", false
	}
	return TruncateUTF16(l.Value, maxUnits), true
}

// TruncateUTF16 cuts s to at most maxUnits UTF-16 code units
func TruncateUTF16(s string, maxUnits int) string {
	if maxUnits < 0 {
		return s
	}
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if n+w > maxUnits {
			return s[:i]
		}
		n += w
	}
	return s
}

// TruncateRunes cuts s to at most maxRunes runes
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes < 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}
