package analytics

import (
	"net/http"
	"strings"
)

// GeoCountry returns the first two-letter country code found in the given
// headers, checked in order. Values are trimmed and upper-cased.
func GeoCountry(h http.Header, names []string) (string, bool) {
	for _, name := range names {
		v := strings.ToUpper(strings.TrimSpace(h.Get(name)))
		if isCountryCode(v) {
			return v, true
		}
	}
	return "", false
}

func isCountryCode(v string) bool {
	if len(v) != 2 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < 'A' || v[i] > 'Z' {
			return false
		}
	}
	return true
}
