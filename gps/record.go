// Package gps
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Textual GPS sample grammar: "device_id,timestamp,lat,lon".
// The pattern gate runs before parsing; nothing rejected by it reaches storage.

package gps

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/momentics/hioload-gps/api"
)

// DefaultPattern accepts up to five device digits, a ten digit unix timestamp and two
// decimal coordinates. Anchored at both ends.
const DefaultPattern = `^\d{1,5},\d{10},-?\d{1,3}\.\d{1,15},-?\d{1,3}\.\d{1,15}$`

var ErrMalformedRecord = errors.New("malformed gps record")

// PatternValidator is a regexp based api.Validator.
type PatternValidator struct {
	re *regexp.Regexp
}

var _ api.Validator = (*PatternValidator)(nil)

// NewPatternValidator compiles pattern; an empty pattern selects DefaultPattern.
func NewPatternValidator(pattern string) (*PatternValidator, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile validation pattern: %w", err)
	}
	return &PatternValidator{re: re}, nil
}

// DefaultValidator returns a validator for DefaultPattern.
func DefaultValidator() *PatternValidator {
	return &PatternValidator{re: regexp.MustCompile(DefaultPattern)}
}

// Validate reports whether text matches the pattern.
func (v *PatternValidator) Validate(text string) bool {
	return v.re.MatchString(text)
}

// ParseRecord splits text into its four fields.
func ParseRecord(text string) (api.Record, error) {
	fields := strings.Split(text, ",")
	if len(fields) != 4 {
		return api.Record{}, fmt.Errorf("%w: want 4 fields, got %d", ErrMalformedRecord, len(fields))
	}

	dev, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return api.Record{}, fmt.Errorf("%w: device_id: %w", ErrMalformedRecord, err)
	}
	ts, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return api.Record{}, fmt.Errorf("%w: timestamp: %w", ErrMalformedRecord, err)
	}
	lat, err := parseCoord(fields[2], 90)
	if err != nil {
		return api.Record{}, fmt.Errorf("%w: lat: %w", ErrMalformedRecord, err)
	}
	lon, err := parseCoord(fields[3], 180)
	if err != nil {
		return api.Record{}, fmt.Errorf("%w: lon: %w", ErrMalformedRecord, err)
	}

	return api.Record{
		DeviceID:  uint32(dev),
		Timestamp: ts,
		Lat:       lat,
		Lon:       lon,
	}, nil
}

func parseCoord(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.Abs(v) > limit {
		return 0, fmt.Errorf("%v out of range ±%v", v, limit)
	}
	return v, nil
}

// FormatRecord renders rec in the wire grammar.
func FormatRecord(rec api.Record) string {
	return strings.Join([]string{
		strconv.FormatUint(uint64(rec.DeviceID), 10),
		strconv.FormatUint(rec.Timestamp, 10),
		strconv.FormatFloat(rec.Lat, 'f', 7, 64),
		strconv.FormatFloat(rec.Lon, 'f', 7, 64),
	}, ",")
}
