// Package geo converts the coordinate notations found on site detail pages
// into signed decimal degrees.
package geo

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// latLongPattern matches free text such as "Lat: 34.39, Long: 64.51".
var latLongPattern = regexp.MustCompile(`(?i)lat\s*:\s*([-+]?\d+(?:\.\d+)?)\s*,?\s*long\s*:\s*([-+]?\d+(?:\.\d+)?)`)

// Valid reports whether the pair holds real coordinates rather than the
// unparsable sentinel. A genuine (0, 0) is valid.
func Valid(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon)
}

// Parse accepts either "Lat: <num>, Long: <num>" text or DMS compass
// notation and returns decimal latitude and longitude. Anything else yields
// (NaN, NaN).
func Parse(text string) (float64, float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return math.NaN(), math.NaN()
	}
	if m := latLongPattern.FindStringSubmatch(text); m != nil {
		lat, latErr := strconv.ParseFloat(m[1], 64)
		lon, lonErr := strconv.ParseFloat(m[2], 64)
		if latErr != nil || lonErr != nil {
			return math.NaN(), math.NaN()
		}
		return lat, lon
	}
	return DMSToDecimal(text)
}

// DMSToDecimal converts "N34 23 47.1 E64 30 57.2" style notation. The input
// must split into exactly six whitespace-separated tokens: hemisphere-prefixed
// latitude degrees, minutes, seconds, then the same for longitude.
func DMSToDecimal(text string) (float64, float64) {
	tokens := strings.Fields(text)
	if len(tokens) != 6 {
		return math.NaN(), math.NaN()
	}
	lat, ok := axis(tokens[0:3], 'N', 'S')
	if !ok {
		return math.NaN(), math.NaN()
	}
	lon, ok := axis(tokens[3:6], 'E', 'W')
	if !ok {
		return math.NaN(), math.NaN()
	}
	return lat, lon
}

func axis(tokens []string, positive, negative byte) (float64, bool) {
	head := tokens[0]
	if len(head) < 2 {
		return 0, false
	}
	hemisphere := upper(head[0])
	if hemisphere != positive && hemisphere != negative {
		return 0, false
	}
	deg, err := strconv.ParseFloat(head[1:], 64)
	if err != nil || deg < 0 {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(tokens[1], 64)
	if err != nil || minutes < 0 || minutes >= 60 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, false
	}
	value := deg + minutes/60 + seconds/3600
	if hemisphere == negative {
		value = -value
	}
	return value, true
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}
