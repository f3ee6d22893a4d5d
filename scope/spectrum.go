package scope

import (
	"context"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/transport"
	"github.com/neilo40/tek_remote/waveform"
)

// Spectrum traces.
const (
	TraceNormal  = "NORMAL"
	TraceAverage = "AVERAGE"
	TraceMaxHold = "MAXHOLD"
	TraceMinHold = "MINHOLD"
)

var traces = []string{TraceNormal, TraceAverage, TraceMaxHold, TraceMinHold}

// SpectrumAnalyzer is the RF input of MDO3000 models.
type SpectrumAnalyzer struct {
	in *instrument.Instrument
}

// CenterFrequency returns the center of the span in hertz.
func (sa *SpectrumAnalyzer) CenterFrequency(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:FREQUENCY?")
}

func (sa *SpectrumAnalyzer) SetCenterFrequency(ctx context.Context, hz float64) error {
	return sa.in.Setf(ctx, "RF:FREQUENCY %g", hz)
}

// Span returns the frequency span in hertz.
func (sa *SpectrumAnalyzer) Span(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:SPAN?")
}

func (sa *SpectrumAnalyzer) SetSpan(ctx context.Context, hz float64) error {
	return sa.in.Setf(ctx, "RF:SPAN %g", hz)
}

// RBWMode returns AUTO or MANUAL.
func (sa *SpectrumAnalyzer) RBWMode(ctx context.Context) (string, error) {
	return sa.in.Query(ctx, "RF:RBW:MODE?")
}

func (sa *SpectrumAnalyzer) SetRBWMode(ctx context.Context, mode string) error {
	return sa.in.Setf(ctx, "RF:RBW:MODE %s", strings.ToUpper(mode))
}

// RBW returns the resolution bandwidth in hertz.
func (sa *SpectrumAnalyzer) RBW(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:RBW?")
}

func (sa *SpectrumAnalyzer) SetRBW(ctx context.Context, hz float64) error {
	return sa.in.Setf(ctx, "RF:RBW %g", hz)
}

// RBWRatio returns the span to RBW ratio used in AUTO mode.
func (sa *SpectrumAnalyzer) RBWRatio(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:SPANRBWRATIO?")
}

func (sa *SpectrumAnalyzer) SetRBWRatio(ctx context.Context, ratio float64) error {
	return sa.in.Setf(ctx, "RF:SPANRBWRATIO %g", ratio)
}

// RefLevel returns the reference level in the vertical unit.
func (sa *SpectrumAnalyzer) RefLevel(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:REFLEVEL?")
}

func (sa *SpectrumAnalyzer) SetRefLevel(ctx context.Context, v float64) error {
	return sa.in.Setf(ctx, "RF:REFLEVEL %g", v)
}

func (sa *SpectrumAnalyzer) VerticalPosition(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:POSITION?")
}

func (sa *SpectrumAnalyzer) SetVerticalPosition(ctx context.Context, divs float64) error {
	return sa.in.Setf(ctx, "RF:POSITION %g", divs)
}

func (sa *SpectrumAnalyzer) VerticalScale(ctx context.Context) (float64, error) {
	return sa.in.QueryFloat(ctx, "RF:SCALE?")
}

func (sa *SpectrumAnalyzer) SetVerticalScale(ctx context.Context, v float64) error {
	return sa.in.Setf(ctx, "RF:SCALE %g", v)
}

// VerticalUnit returns the power unit, e.g. DBM or DBUV.
func (sa *SpectrumAnalyzer) VerticalUnit(ctx context.Context) (string, error) {
	return sa.in.Query(ctx, "RF:UNITS?")
}

func (sa *SpectrumAnalyzer) SetVerticalUnit(ctx context.Context, unit string) error {
	return sa.in.Setf(ctx, "RF:UNITS %s", strings.ToUpper(unit))
}

// Window returns the FFT window.
func (sa *SpectrumAnalyzer) Window(ctx context.Context) (string, error) {
	return sa.in.Query(ctx, "RF:WINDOW?")
}

func (sa *SpectrumAnalyzer) SetWindow(ctx context.Context, window string) error {
	return sa.in.Setf(ctx, "RF:WINDOW %s", strings.ToUpper(window))
}

func (sa *SpectrumAnalyzer) Label(ctx context.Context) (string, error) {
	return sa.in.QueryString(ctx, "RF:LABEL?")
}

func (sa *SpectrumAnalyzer) SetLabel(ctx context.Context, label string) error {
	return sa.in.Setf(ctx, "RF:LABEL '%s'", label)
}

// Clipping reports whether the RF input is overdriven.
func (sa *SpectrumAnalyzer) Clipping(ctx context.Context) (bool, error) {
	return sa.in.QueryBool(ctx, "RF:CLIPPING?")
}

func normalizeTrace(t string) (string, error) {
	up := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(t)), " ", "")
	if !lo.Contains(traces, up) {
		return "", &waveform.ValidationError{Input: t, Reason: "trace must be NORMAL, AVERAGE, MAX HOLD or MIN HOLD"}
	}
	return up, nil
}

// Traces returns the displayed spectrum traces.
func (sa *SpectrumAnalyzer) Traces(ctx context.Context) ([]string, error) {
	var out []string
	for _, t := range traces {
		on, err := sa.in.QueryBool(ctx, "SELECT:RF_"+t+"?")
		if err != nil {
			return nil, err
		}
		if on {
			out = append(out, t)
		}
	}
	return out, nil
}

// SetTraces shows exactly the given traces.
func (sa *SpectrumAnalyzer) SetTraces(ctx context.Context, want ...string) error {
	on := make([]string, 0, len(want))
	for _, t := range want {
		n, err := normalizeTrace(t)
		if err != nil {
			return err
		}
		on = append(on, n)
	}
	return sa.in.Validate(ctx, func(ctx context.Context) error {
		for _, t := range traces {
			if err := sa.in.Writef(ctx, "SELECT:RF_%s %s", t, onOff(lo.Contains(on, t))); err != nil {
				return err
			}
		}
		return nil
	})
}

// Read transfers the normal trace. With dB set the power is converted to the vertical unit
// the device displays, otherwise it is returned in watts. The frequency axis runs from the
// start offset in steps of Dt.
func (sa *SpectrumAnalyzer) Read(ctx context.Context, dB bool) (*waveform.Waveform, error) {
	if err := sa.in.Write(ctx, "DATA:SOURCE RF_NORMAL"); err != nil {
		return nil, err
	}
	pre, err := readPreamble(ctx, sa.in)
	if err != nil {
		return nil, errors.Wrap(err, "RF_NORMAL")
	}
	deviceTime, err := sa.in.DeviceTime(ctx)
	if err != nil {
		return nil, err
	}
	payload, err := sa.in.QueryBinary(ctx, "CURVE?")
	if err != nil {
		return nil, errors.Wrap(err, "transferring RF_NORMAL")
	}
	watts, err := transport.DecodeFloat32(payload, binary.BigEndian)
	if err != nil {
		return nil, err
	}

	var samples []float64
	yUnit := "W"
	if dB {
		raw, err := sa.VerticalUnit(ctx)
		if err != nil {
			return nil, err
		}
		unit, err := waveform.ParseRFUnit(raw)
		if err != nil {
			return nil, err
		}
		samples = waveform.LogScale(watts, unit)
		yUnit = unit.Label
	} else {
		samples = waveform.Linear(watts)
	}

	w, err := waveform.New([]string{"RF_NORMAL"}, [][]float64{samples})
	if err != nil {
		return nil, err
	}
	if err := decorate(w, pre, deviceTime); err != nil {
		return nil, errors.Wrap(err, "RF_NORMAL")
	}
	w.YUnit = yUnit
	return w, nil
}
