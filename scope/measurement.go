package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/waveform"
)

// ErrNoFreeSlot is returned by Measurement.Add when every slot is in use.
var ErrNoFreeSlot = errors.New("no free measurement slot")

// Measurement is the automated measurement system. It has a fixed number of slots.
type Measurement struct {
	in    *instrument.Instrument
	slots int
}

// Slots returns the number of measurement slots.
func (m *Measurement) Slots() int {
	return m.slots
}

// Slot returns slot n, counting from 1.
func (m *Measurement) Slot(n int) (*MeasurementSlot, error) {
	if n < 1 || n > m.slots {
		return nil, &waveform.ValidationError{
			Input:  fmt.Sprintf("MEAS%d", n),
			Reason: fmt.Sprintf("measurement slots are 1 to %d", m.slots),
		}
	}
	return &MeasurementSlot{in: m.in, n: n}, nil
}

// Add configures the first unused slot to measure typ on source and turns it on.
func (m *Measurement) Add(ctx context.Context, source, typ string) (*MeasurementSlot, error) {
	for n := 1; n <= m.slots; n++ {
		slot := &MeasurementSlot{in: m.in, n: n}
		on, err := slot.State(ctx)
		if err != nil {
			return nil, err
		}
		if on {
			continue
		}
		err = m.in.Validate(ctx, func(ctx context.Context) error {
			for _, cmd := range []string{
				slot.header("SOURCE") + " " + strings.ToUpper(source),
				slot.header("TYPE") + " " + strings.ToUpper(typ),
				slot.header("STATE") + " ON",
			} {
				if err := m.in.Write(ctx, cmd); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return slot, nil
	}
	return nil, ErrNoFreeSlot
}

// Remove turns slot n off.
func (m *Measurement) Remove(ctx context.Context, n int) error {
	slot, err := m.Slot(n)
	if err != nil {
		return err
	}
	return slot.SetState(ctx, false)
}

// MeasurementSlot is one automated measurement.
type MeasurementSlot struct {
	in *instrument.Instrument
	n  int
}

func (s *MeasurementSlot) header(field string) string {
	return fmt.Sprintf("MEASUREMENT:MEAS%d:%s", s.n, field)
}

// Number returns the slot number.
func (s *MeasurementSlot) Number() int {
	return s.n
}

func (s *MeasurementSlot) Source(ctx context.Context) (string, error) {
	return s.in.Query(ctx, s.header("SOURCE")+"?")
}

func (s *MeasurementSlot) SetSource(ctx context.Context, source string) error {
	return s.in.Setf(ctx, "%s %s", s.header("SOURCE"), strings.ToUpper(source))
}

// Type returns the measurement type, e.g. FREQUENCY or PK2PK.
func (s *MeasurementSlot) Type(ctx context.Context) (string, error) {
	return s.in.Query(ctx, s.header("TYPE")+"?")
}

func (s *MeasurementSlot) SetType(ctx context.Context, typ string) error {
	return s.in.Setf(ctx, "%s %s", s.header("TYPE"), strings.ToUpper(typ))
}

// State reports whether the slot is displayed and measuring.
func (s *MeasurementSlot) State(ctx context.Context) (bool, error) {
	return s.in.QueryBool(ctx, s.header("STATE")+"?")
}

func (s *MeasurementSlot) SetState(ctx context.Context, on bool) error {
	return s.in.Setf(ctx, "%s %s", s.header("STATE"), onOff(on))
}

// Value returns the latest result. The device reports 9.9E37 when there is none.
func (s *MeasurementSlot) Value(ctx context.Context) (float64, error) {
	return s.in.QueryFloat(ctx, s.header("VALUE")+"?")
}

func (s *MeasurementSlot) Min(ctx context.Context) (float64, error) {
	return s.in.QueryFloat(ctx, s.header("MINIMUM")+"?")
}

func (s *MeasurementSlot) Max(ctx context.Context) (float64, error) {
	return s.in.QueryFloat(ctx, s.header("MAXIMUM")+"?")
}

func (s *MeasurementSlot) Mean(ctx context.Context) (float64, error) {
	return s.in.QueryFloat(ctx, s.header("MEAN")+"?")
}

func (s *MeasurementSlot) StdDev(ctx context.Context) (float64, error) {
	return s.in.QueryFloat(ctx, s.header("STDDEV")+"?")
}

// Unit returns the unit of the results.
func (s *MeasurementSlot) Unit(ctx context.Context) (string, error) {
	return s.in.QueryString(ctx, s.header("UNITS")+"?")
}
