package scope

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/instrument"
)

// DelayMode selects what the horizontal position means.
type DelayMode string

const (
	// DelayTime centers the record HorizontalPosition seconds after the trigger.
	DelayTime DelayMode = "delay_time"
	// PretriggerPercent places the trigger HorizontalPosition percent into the record.
	PretriggerPercent DelayMode = "pretrigger_percent"
)

// Oscilloscope is the time domain instrument of a scope.
type Oscilloscope struct {
	in       *instrument.Instrument
	ctl      *acquire.Controller
	family   instrument.Family
	channels []*Channel

	Trigger *Trigger
	// BTrigger is the delayed trigger; only TDS3000 models expose it separately.
	BTrigger    *Trigger
	Measurement *Measurement
}

func newOscilloscope(in *instrument.Instrument, ctl *acquire.Controller) *Oscilloscope {
	f := in.Features()
	o := &Oscilloscope{
		in:          in,
		ctl:         ctl,
		family:      in.Family(),
		Trigger:     &Trigger{in: in, family: in.Family(), designation: "A"},
		Measurement: &Measurement{in: in, slots: f.Measurements},
	}
	for n := 1; n <= f.AnalogChannels; n++ {
		ch := &Channel{in: in, family: o.family, n: n}
		ch.Probe = &Probe{ch: ch}
		o.channels = append(o.channels, ch)
	}
	if o.family == instrument.TDS3000 {
		o.BTrigger = &Trigger{in: in, family: o.family, designation: "B"}
	}
	return o
}

// Controller returns the acquisition controller owned by this oscilloscope.
func (o *Oscilloscope) Controller() *acquire.Controller {
	return o.ctl
}

// Acquire runs one single-sequence acquisition. See acquire.Controller.Acquire.
func (o *Oscilloscope) Acquire(ctx context.Context, timeout time.Duration) (acquire.Status, error) {
	return o.ctl.Acquire(ctx, timeout)
}

// Channels returns the analog channels.
func (o *Oscilloscope) Channels() []*Channel {
	return o.channels
}

// Channel returns analog channel n, counting from 1.
func (o *Oscilloscope) Channel(n int) (*Channel, error) {
	if n < 1 || n > len(o.channels) {
		return nil, notSupported(o.in.IDN().Model, fmt.Sprintf("channel %d", n))
	}
	return o.channels[n-1], nil
}

// HorizontalScale returns the time per division in seconds.
func (o *Oscilloscope) HorizontalScale(ctx context.Context) (float64, error) {
	return o.in.QueryFloat(ctx, "HORIZONTAL:SCALE?")
}

// SetHorizontalScale sets the time per division; the device coerces it to the nearest setting.
func (o *Oscilloscope) SetHorizontalScale(ctx context.Context, seconds float64) error {
	return o.in.Setf(ctx, "HORIZONTAL:SCALE %g", seconds)
}

func (o *Oscilloscope) delayHeader() string {
	if o.family == instrument.TDS3000 {
		return "HORIZONTAL:DELAY:STATE"
	}
	return "HORIZONTAL:DELAY:MODE"
}

func (o *Oscilloscope) pretriggerHeader() string {
	if o.family == instrument.TDS3000 {
		return "HORIZONTAL:TRIGGER:POSITION"
	}
	return "HORIZONTAL:POSITION"
}

// DelayMode returns how HorizontalPosition is interpreted.
func (o *Oscilloscope) DelayMode(ctx context.Context) (DelayMode, error) {
	on, err := o.in.QueryBool(ctx, o.delayHeader()+"?")
	if err != nil {
		return "", err
	}
	if on {
		return DelayTime, nil
	}
	return PretriggerPercent, nil
}

// SetDelayMode sets how HorizontalPosition is interpreted.
func (o *Oscilloscope) SetDelayMode(ctx context.Context, mode DelayMode) error {
	return o.in.Setf(ctx, "%s %s", o.delayHeader(), onOff(mode == DelayTime))
}

// HorizontalPosition returns the delay time in seconds or the pretrigger percentage,
// depending on the delay mode.
func (o *Oscilloscope) HorizontalPosition(ctx context.Context) (float64, error) {
	mode, err := o.DelayMode(ctx)
	if err != nil {
		return 0, err
	}
	if mode == DelayTime {
		return o.in.QueryFloat(ctx, "HORIZONTAL:DELAY:TIME?")
	}
	return o.in.QueryFloat(ctx, o.pretriggerHeader()+"?")
}

// SetHorizontalPosition sets the delay time or the pretrigger percentage, depending on the
// delay mode.
func (o *Oscilloscope) SetHorizontalPosition(ctx context.Context, v float64) error {
	mode, err := o.DelayMode(ctx)
	if err != nil {
		return err
	}
	if mode == DelayTime {
		return o.in.Setf(ctx, "HORIZONTAL:DELAY:TIME %g", v)
	}
	return o.in.Setf(ctx, "%s %g", o.pretriggerHeader(), v)
}

// RecordLength returns the number of samples in a record.
func (o *Oscilloscope) RecordLength(ctx context.Context) (int, error) {
	return o.in.QueryInt(ctx, "HORIZONTAL:RECORDLENGTH?")
}

// SetRecordLength sets the number of samples in a record.
func (o *Oscilloscope) SetRecordLength(ctx context.Context, n int) error {
	return o.in.Setf(ctx, "HORIZONTAL:RECORDLENGTH %d", n)
}

// SampleRate returns the sample rate in hertz. The device always acquires at this rate and
// decimates for display.
func (o *Oscilloscope) SampleRate(ctx context.Context) (float64, error) {
	if o.family == instrument.TDS3000 {
		return 0, notSupported(o.in.IDN().Model, "sample rate")
	}
	return o.in.QueryFloat(ctx, "HORIZONTAL:SAMPLERATE?")
}

// AcquisitionMode returns SAMPLE, PEAKDETECT, HIRES, AVERAGE or ENVELOPE.
func (o *Oscilloscope) AcquisitionMode(ctx context.Context) (string, error) {
	return o.in.Query(ctx, "ACQUIRE:MODE?")
}

func (o *Oscilloscope) SetAcquisitionMode(ctx context.Context, mode string) error {
	return o.in.Setf(ctx, "ACQUIRE:MODE %s", strings.ToUpper(mode))
}

// AcquisitionCount returns the number of acquisitions since the last RUN. It is reset when
// a setting that affects the waveform changes.
func (o *Oscilloscope) AcquisitionCount(ctx context.Context) (int, error) {
	return o.in.QueryInt(ctx, "ACQUIRE:NUMACQ?")
}

// Averages returns the number of waveforms averaged in AVERAGE mode.
func (o *Oscilloscope) Averages(ctx context.Context) (int, error) {
	return o.in.QueryInt(ctx, "ACQUIRE:NUMAVG?")
}

func (o *Oscilloscope) SetAverages(ctx context.Context, n int) error {
	return o.in.Setf(ctx, "ACQUIRE:NUMAVG %d", n)
}

// Envelopes returns the number of envelopes in ENVELOPE mode, or INFINITE.
func (o *Oscilloscope) Envelopes(ctx context.Context) (string, error) {
	return o.in.Query(ctx, "ACQUIRE:NUMENV?")
}

func (o *Oscilloscope) SetEnvelopes(ctx context.Context, n string) error {
	return o.in.Setf(ctx, "ACQUIRE:NUMENV %s", n)
}

// Running reports whether the acquisition system is running.
func (o *Oscilloscope) Running(ctx context.Context) (bool, error) {
	return o.in.QueryBool(ctx, "ACQUIRE:STATE?")
}

// SetRunning starts or stops acquisitions.
func (o *Oscilloscope) SetRunning(ctx context.Context, run bool) error {
	if run {
		return o.in.Set(ctx, "ACQUIRE:STATE RUN")
	}
	return o.in.Set(ctx, "ACQUIRE:STATE STOP")
}

// SingleAcquisition reports whether the device stops after one sequence.
func (o *Oscilloscope) SingleAcquisition(ctx context.Context) (bool, error) {
	v, err := o.in.Query(ctx, "ACQUIRE:STOPAFTER?")
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(v, "SEQ"), nil
}

// SetSingleAcquisition selects single sequence or continuous acquisitions.
func (o *Oscilloscope) SetSingleAcquisition(ctx context.Context, single bool) error {
	if single {
		return o.in.Set(ctx, "ACQUIRE:STOPAFTER SEQUENCE")
	}
	return o.in.Set(ctx, "ACQUIRE:STOPAFTER RUNSTOP")
}

// ForceTrigger forces a trigger event.
func (o *Oscilloscope) ForceTrigger(ctx context.Context) error {
	return o.in.Set(ctx, "TRIGGER FORCE")
}

// TriggerState returns ARMED, AUTO, READY, SAVE or TRIGGER.
func (o *Oscilloscope) TriggerState(ctx context.Context) (string, error) {
	return o.in.Query(ctx, "TRIGGER:STATE?")
}
