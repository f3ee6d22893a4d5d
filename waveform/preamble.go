// Package waveform decodes waveform preambles and curve data into calibrated waveforms.
package waveform

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Preamble keys required to calibrate a record.
const (
	KeyYZero = "YZERO"
	KeyYMult = "YMULT"
	KeyYOff  = "YOFF"
	KeyXIncr = "XINCR"
	KeyXZero = "XZERO"
	KeyXUnit = "XUNIT"
	KeyYUnit = "YUNIT"
)

var requiredKeys = []string{KeyYZero, KeyYMult, KeyYOff, KeyXIncr, KeyXZero, KeyXUnit, KeyYUnit}

// Preamble holds the fields of a WFMOUTPRE?/WFMPRE? answer. Values are int64, float64 or
// string, whichever parses first.
type Preamble map[string]interface{}

// ParsePreamble decodes a semicolon separated list of "KEY value" fields. header is the
// prefix the device puts in front of the first field when headers are on, e.g. ":WFMOUTPRE:".
func ParsePreamble(raw, header string) Preamble {
	raw = strings.TrimSpace(raw)
	if header != "" {
		raw = strings.Replace(raw, header, "", 1)
	}
	p := Preamble{}
	if raw == "" {
		return p
	}
	for _, field := range strings.Split(raw, ";") {
		k, v, _ := strings.Cut(strings.TrimSpace(field), " ")
		p[k] = coerce(strings.TrimSpace(v))
	}
	return p
}

func coerce(v string) interface{} {
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return strings.Trim(v, `"`)
}

// Float returns a numeric field as float64.
func (p Preamble) Float(key string) (float64, error) {
	switch v := p[key].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case nil:
		return 0, errors.Errorf("preamble has no %s field", key)
	default:
		return 0, errors.Errorf("preamble field %s is %q, not a number", key, v)
	}
}

// String returns a field as text.
func (p Preamble) String(key string) string {
	v, ok := p[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// Check verifies that every field needed to calibrate is present.
func (p Preamble) Check() error {
	for _, k := range requiredKeys {
		if _, ok := p[k]; !ok {
			return errors.Errorf("preamble has no %s field", k)
		}
	}
	return nil
}

// Scale returns the vertical calibration of the record.
func (p Preamble) Scale() (Scale, error) {
	var s Scale
	var err error
	if s.YZero, err = p.Float(KeyYZero); err != nil {
		return Scale{}, err
	}
	if s.YMult, err = p.Float(KeyYMult); err != nil {
		return Scale{}, err
	}
	if s.YOff, err = p.Float(KeyYOff); err != nil {
		return Scale{}, err
	}
	return s, nil
}
