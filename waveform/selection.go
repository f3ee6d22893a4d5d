package waveform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// ValidationError reports a malformed channel or sample request. It is returned before
// anything is sent to the device.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %q: %s", e.Input, e.Reason)
}

var channelPattern = regexp.MustCompile(`^CH(\d+)(?::(\d+))?$`)

// ParseChannels expands channel specifications such as "CH2", "CH1:3" or an explicit list
// into an ordered list of distinct channel names. Channels beyond nChannels are rejected.
func ParseChannels(nChannels int, specs ...string) ([]string, error) {
	if len(specs) == 0 {
		return nil, &ValidationError{Input: "", Reason: "no channels requested"}
	}
	var out []string
	for _, spec := range specs {
		m := channelPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(spec)))
		if m == nil {
			return nil, &ValidationError{Input: spec, Reason: "not a valid specification"}
		}
		first, _ := strconv.Atoi(m[1])
		last := first
		if m[2] != "" {
			last, _ = strconv.Atoi(m[2])
		}
		if first < 1 || last > nChannels {
			return nil, &ValidationError{Input: spec, Reason: fmt.Sprintf("channels are CH1 to CH%d", nChannels)}
		}
		if last < first {
			return nil, &ValidationError{Input: spec, Reason: "range is reversed"}
		}
		for ch := first; ch <= last; ch++ {
			out = append(out, "CH"+strconv.Itoa(ch))
		}
	}
	return lo.Uniq(out), nil
}

type rangeKind int

const (
	rangeAll rangeKind = iota
	rangeFirst
	rangeSpan
)

// SampleRange selects which samples of the record to transfer. The zero value is All.
type SampleRange struct {
	kind        rangeKind
	start, stop int
}

// All selects the whole record.
func All() SampleRange {
	return SampleRange{kind: rangeAll}
}

// First selects the first n samples.
func First(n int) SampleRange {
	return SampleRange{kind: rangeFirst, start: 1, stop: n}
}

// Span selects samples start to stop inclusive, counted from 1.
func Span(start, stop int) SampleRange {
	return SampleRange{kind: rangeSpan, start: start, stop: stop}
}

func (r SampleRange) String() string {
	switch r.kind {
	case rangeFirst:
		return strconv.Itoa(r.stop)
	case rangeSpan:
		return fmt.Sprintf("(%d, %d)", r.start, r.stop)
	default:
		return "all"
	}
}

// Validate checks the range without knowing the record length.
func (r SampleRange) Validate() error {
	switch r.kind {
	case rangeFirst:
		if r.stop < 1 {
			return &ValidationError{Input: r.String(), Reason: "sample count must be at least 1"}
		}
	case rangeSpan:
		if r.start < 1 {
			return &ValidationError{Input: r.String(), Reason: "samples are counted from 1"}
		}
		if r.stop < r.start {
			return &ValidationError{Input: r.String(), Reason: "stop is before start"}
		}
	}
	return nil
}

// IsAll reports whether the range selects the whole record.
func (r SampleRange) IsAll() bool {
	return r.kind == rangeAll
}

// Resolve returns the first and last sample numbers for a record of the given length. A
// range reaching past the end of the record is rejected.
func (r SampleRange) Resolve(recordLength int) (int, int, error) {
	if err := r.Validate(); err != nil {
		return 0, 0, err
	}
	if recordLength < 1 {
		return 0, 0, &ValidationError{Input: r.String(), Reason: "the record is empty"}
	}
	if r.kind == rangeAll {
		return 1, recordLength, nil
	}
	if r.stop > recordLength {
		return 0, 0, &ValidationError{
			Input:  r.String(),
			Reason: fmt.Sprintf("the record has %d samples", recordLength),
		}
	}
	return r.start, r.stop, nil
}

// ParseSampleRange accepts "all", "N" or "A:B".
func ParseSampleRange(s string) (SampleRange, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return All(), nil
	}
	if a, b, ok := strings.Cut(s, ":"); ok {
		start, err1 := strconv.Atoi(a)
		stop, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			return SampleRange{}, &ValidationError{Input: s, Reason: "expected start:stop"}
		}
		r := Span(start, stop)
		return r, r.Validate()
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return SampleRange{}, &ValidationError{Input: s, Reason: "expected all, a count or start:stop"}
	}
	r := First(n)
	return r, r.Validate()
}
