package scope_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/goleak"
	"go.viam.com/test"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/scope"
	"github.com/neilo40/tek_remote/sim"
	"github.com/neilo40/tek_remote/waveform"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)

func setup(t *testing.T, model string) (*sim.Simulator, *scope.Scope) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(now)
	s, err := sim.NewWithClock(model, mock)
	test.That(t, err, test.ShouldBeNil)
	logger := logging.NewTestLogger(t)
	in, err := instrument.Open(context.Background(), s, instrument.Options{Logger: logger, Clock: mock})
	test.That(t, err, test.ShouldBeNil)
	sc := scope.New(in, scope.Options{Acquire: acquire.Options{
		PollInterval:     10 * time.Millisecond,
		FeedbackInterval: 5 * time.Millisecond,
	}})
	t.Cleanup(func() { test.That(t, sc.Close(), test.ShouldBeNil) })
	return s, sc
}

func TestCompose(t *testing.T) {
	t.Run("MDO3024", func(t *testing.T) {
		_, sc := setup(t, "MDO3024")
		test.That(t, sc.Model(), test.ShouldEqual, "MDO3024")
		test.That(t, sc.SerialNumber(), test.ShouldEqual, "SIM00001")
		test.That(t, sc.Oscilloscope.Channels(), test.ShouldHaveLength, 4)
		test.That(t, sc.Spectrum, test.ShouldNotBeNil)
		test.That(t, sc.DVM, test.ShouldNotBeNil)
		test.That(t, sc.FileSystem, test.ShouldNotBeNil)
		test.That(t, sc.Oscilloscope.BTrigger, test.ShouldBeNil)
		test.That(t, sc.Features()["DVM"], test.ShouldEqual, true)

		_, err := sc.FullBandwidth()
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
		_, err = sc.BatterySOC(context.Background())
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
	})

	t.Run("TDS3034B", func(t *testing.T) {
		_, sc := setup(t, "TDS3034B")
		test.That(t, sc.Oscilloscope.Channels(), test.ShouldHaveLength, 4)
		test.That(t, sc.Spectrum, test.ShouldBeNil)
		test.That(t, sc.DVM, test.ShouldBeNil)
		test.That(t, sc.FileSystem, test.ShouldBeNil)
		test.That(t, sc.Oscilloscope.BTrigger, test.ShouldNotBeNil)

		bw, err := sc.FullBandwidth()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, bw, test.ShouldEqual, "300 MHz")
		soc, err := sc.BatterySOC(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, soc, test.ShouldEqual, 80.0)

		err = sc.SaveImage(context.Background(), "x.png", scope.PNG)
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
	})
}

func TestReadEndToEnd(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.SetChannel("CH1", sim.Channel{
		Raw: []int8{0, 25, 50}, YMult: 0.04, XIncr: 1e-6, XZero: -5e-4, XUnit: "s", YUnit: "V",
	})

	w, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{Channels: []string{"CH1"}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Channels, test.ShouldResemble, []string{"CH1"})
	samples := w.Samples()
	test.That(t, samples, test.ShouldHaveLength, 3)
	for i, want := range []float64{0, 1, 2} {
		test.That(t, samples[i], test.ShouldAlmostEqual, want, 1e-9)
	}
	test.That(t, w.Dt, test.ShouldEqual, 1e-6)
	test.That(t, w.StartOffset, test.ShouldEqual, -5e-4)
	test.That(t, w.XUnit, test.ShouldEqual, "s")
	test.That(t, w.YUnit, test.ShouldEqual, "V")
	test.That(t, w.T0.Equal(now.Add(-500*time.Microsecond)), test.ShouldBeTrue)

	cmds := s.Commands()
	test.That(t, cmds, test.ShouldContain, "DATA:START 1")
	test.That(t, cmds, test.ShouldContain, "DATA:STOP 3")
	test.That(t, cmds, test.ShouldContain, "DATA:ENCDG RIBINARY")
	test.That(t, cmds, test.ShouldContain, "ACQUIRE:STATE STOP")
	// the scope was running before the read
	test.That(t, s.Setting("ACQUIRE:STATE"), test.ShouldEqual, "1")
}

func TestReadSamples(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.SetChannel("CH1", sim.Channel{Raw: []int8{-2, -1, 0, 1, 2}, YMult: 1, XIncr: 1, XUnit: "s", YUnit: "V"})

	m, err := sc.Oscilloscope.ReadArray(context.Background(), scope.ReadRequest{
		Channels: []string{"CH1"},
		Samples:  waveform.Span(2, 4),
	})
	test.That(t, err, test.ShouldBeNil)
	rows, cols := m.Dims()
	test.That(t, rows, test.ShouldEqual, 1)
	test.That(t, cols, test.ShouldEqual, 3)
	test.That(t, m.RawRowView(0), test.ShouldResemble, []float64{-1, 0, 1})

	s.ResetLog()
	_, err = sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{
		Channels: []string{"CH1"},
		Samples:  waveform.First(2),
	})
	test.That(t, err, test.ShouldBeNil)
	cmds := s.Commands()
	test.That(t, cmds, test.ShouldContain, "DATA:STOP 2")
	test.That(t, cmds, test.ShouldContain, "HORIZONTAL:RECORDLENGTH?")
}

func TestReadPastRecord(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.SetChannel("CH1", sim.Channel{Raw: []int8{1, 2, 3}, YMult: 1, XIncr: 1, XUnit: "s", YUnit: "V"})

	for _, samples := range []waveform.SampleRange{waveform.First(500), waveform.Span(2, 4)} {
		s.ResetLog()
		_, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{
			Channels: []string{"CH1"},
			Samples:  samples,
		})
		var verr *waveform.ValidationError
		test.That(t, errors.As(err, &verr), test.ShouldBeTrue)
		test.That(t, s.Commands(), test.ShouldResemble, []string{"HORIZONTAL:RECORDLENGTH?"})
	}

	t.Run("short transfer", func(t *testing.T) {
		s.Set("HORIZONTAL:RECORDLENGTH", "10")
		_, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{Channels: []string{"CH1"}})
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "returned 3 samples, requested 10")
		// the run state is restored on failure
		test.That(t, s.Setting("ACQUIRE:STATE"), test.ShouldEqual, "1")
	})
}

func TestReadValidation(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	for _, req := range []scope.ReadRequest{
		{Channels: []string{"CH9"}},
		{Channels: []string{"CHX"}},
		{Channels: []string{"CH3:1"}},
		{Channels: []string{"CH1"}, Samples: waveform.First(0)},
		{Channels: []string{"CH1"}, Samples: waveform.Span(4, 2)},
	} {
		s.ResetLog()
		_, err := sc.Oscilloscope.Read(context.Background(), req)
		var verr *waveform.ValidationError
		test.That(t, errors.As(err, &verr), test.ShouldBeTrue)
		test.That(t, s.Commands(), test.ShouldBeEmpty)
	}
}

func TestReadMultiChannel(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.SetChannel("CH1", sim.Channel{Raw: []int8{1, 2}, YMult: 1, XIncr: 1e-6, XZero: 0, XUnit: "s", YUnit: "V"})
	s.SetChannel("CH2", sim.Channel{Raw: []int8{3, 4}, YMult: 2, XIncr: 2e-6, XZero: -1, XUnit: "s", YUnit: "A"})

	w, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{Channels: []string{"CH2", "CH1"}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Channels, test.ShouldResemble, []string{"CH2", "CH1"})
	test.That(t, w.Channel(0), test.ShouldResemble, []float64{6, 8})
	test.That(t, w.Channel(1), test.ShouldResemble, []float64{1, 2})
	// time axis and units come from the first requested channel
	test.That(t, w.Dt, test.ShouldEqual, 2e-6)
	test.That(t, w.YUnit, test.ShouldEqual, "A")
	test.That(t, w.T0.Equal(now.Add(-time.Second)), test.ShouldBeTrue)
}

func TestReadFresh(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		s, sc := setup(t, "MDO3024")
		s.SetChannel("CH1", sim.Channel{Raw: []int8{1, 2, 3}, YMult: 1, XIncr: 1, XUnit: "s", YUnit: "V"})
		s.CompleteAfterPolls = 2

		w, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{
			Channels: []string{"CH1"},
			Fresh:    true,
			Timeout:  5 * time.Second,
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, w.Len(), test.ShouldEqual, 3)
		test.That(t, s.Commands(), test.ShouldContain, "ACQUIRE:STOPAFTER SEQUENCE")
		test.That(t, s.Setting("ACQUIRE:STOPAFTER"), test.ShouldEqual, "RUNSTOP")
		test.That(t, s.Setting("ACQUIRE:STATE"), test.ShouldEqual, "1")
		test.That(t, sc.Oscilloscope.Controller().Running(), test.ShouldBeFalse)
	})

	t.Run("incomplete", func(t *testing.T) {
		s, sc := setup(t, "MDO3024")
		s.SetChannel("CH1", sim.Channel{Raw: []int8{1, 2, 3}, YMult: 1, XIncr: 1, XUnit: "s", YUnit: "V"})
		s.CompleteAfterPolls = 2
		s.CompleteWithoutOPC = true

		_, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{
			Channels: []string{"CH1"},
			Fresh:    true,
			Timeout:  5 * time.Second,
		})
		test.That(t, errors.Is(err, acquire.ErrAcquisitionFailed), test.ShouldBeTrue)
		test.That(t, s.Commands(), test.ShouldNotContain, "CURVE?")
		test.That(t, s.Setting("ACQUIRE:STOPAFTER"), test.ShouldEqual, "RUNSTOP")
		test.That(t, s.Setting("ACQUIRE:STATE"), test.ShouldEqual, "1")
	})
}

func TestReadTDS(t *testing.T) {
	s, sc := setup(t, "TDS3014B")
	s.SetChannel("CH2", sim.Channel{Raw: []int8{10, 20}, YMult: 0.1, YZero: 1, XIncr: 1e-3, XUnit: "s", YUnit: "V"})

	w, err := sc.Oscilloscope.Read(context.Background(), scope.ReadRequest{Channels: []string{"CH2"}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w.Channel(0)[0], test.ShouldAlmostEqual, 2.0, 1e-9)
	test.That(t, w.Channel(0)[1], test.ShouldAlmostEqual, 3.0, 1e-9)
	test.That(t, w.YOffset, test.ShouldEqual, 1.0)
	test.That(t, s.Commands(), test.ShouldContain, "WFMPRE?")
}

func TestSpectrumRead(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.SetRF([]float32{1e-3, 1e-2, 1e-4}, sim.Channel{XIncr: 1e3, XZero: 9.995e8, XUnit: "Hz", YUnit: "W"})

	t.Run("log", func(t *testing.T) {
		s.Set("RF:UNITS", "DBMW")
		w, err := sc.Spectrum.Read(context.Background(), true)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, w.YUnit, test.ShouldEqual, "dBmW")
		for i, want := range []float64{0, 10, -10} {
			test.That(t, w.Samples()[i], test.ShouldAlmostEqual, want, 1e-4)
		}
		test.That(t, w.Dt, test.ShouldEqual, 1e3)
		test.That(t, w.StartOffset, test.ShouldEqual, 9.995e8)
		test.That(t, w.XUnit, test.ShouldEqual, "Hz")
		test.That(t, w.T0.Equal(now), test.ShouldBeTrue)
	})

	t.Run("linear", func(t *testing.T) {
		w, err := sc.Spectrum.Read(context.Background(), false)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, w.YUnit, test.ShouldEqual, "W")
		test.That(t, w.Samples()[1], test.ShouldAlmostEqual, 1e-2, 1e-9)
	})

	t.Run("unknown unit", func(t *testing.T) {
		s.Set("RF:UNITS", "LINEAR")
		_, err := sc.Spectrum.Read(context.Background(), true)
		var verr *waveform.ValidationError
		test.That(t, errors.As(err, &verr), test.ShouldBeTrue)
	})
}

func TestSpectrumTraces(t *testing.T) {
	_, sc := setup(t, "MDO3024")
	ctx := context.Background()

	test.That(t, sc.Spectrum.SetTraces(ctx, "normal", "Max Hold"), test.ShouldBeNil)
	traces, err := sc.Spectrum.Traces(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, traces, test.ShouldResemble, []string{scope.TraceNormal, scope.TraceMaxHold})

	err = sc.Spectrum.SetTraces(ctx, "peak")
	var verr *waveform.ValidationError
	test.That(t, errors.As(err, &verr), test.ShouldBeTrue)

	test.That(t, sc.Spectrum.SetSpan(ctx, 2e6), test.ShouldBeNil)
	span, err := sc.Spectrum.Span(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, span, test.ShouldEqual, 2e6)
}

func TestDisplay(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	ctx := context.Background()

	shown, err := sc.Display(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shown, test.ShouldResemble, []string{"CH1"})

	test.That(t, sc.SetDisplay(ctx, "CH2:3", "math", "RF"), test.ShouldBeNil)
	shown, err = sc.Display(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shown, test.ShouldResemble, []string{"CH2", "CH3", "MATH", "RF"})
	test.That(t, s.Setting("SELECT:CH1"), test.ShouldEqual, "0")

	var verr *waveform.ValidationError
	test.That(t, errors.As(sc.SetDisplay(ctx, "CH7"), &verr), test.ShouldBeTrue)
	test.That(t, errors.As(sc.SetDisplay(ctx, "SPECTRUM"), &verr), test.ShouldBeTrue)
}

func TestCommandError(t *testing.T) {
	s, sc := setup(t, "MDO3024")
	s.Reject("CH1:SCALE", "Illegal parameter value")
	ch, err := sc.Oscilloscope.Channel(1)
	test.That(t, err, test.ShouldBeNil)

	err = ch.SetScale(context.Background(), 1e9)
	var cerr *instrument.CommandError
	test.That(t, errors.As(err, &cerr), test.ShouldBeTrue)
	test.That(t, cerr.Message, test.ShouldEqual, "Illegal parameter value")
	test.That(t, s.DESE(), test.ShouldEqual, 255)

	test.That(t, ch.SetScale(context.Background(), 0.5), test.ShouldNotBeNil)
	ch2, err := sc.Oscilloscope.Channel(2)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ch2.SetScale(context.Background(), 0.5), test.ShouldBeNil)
	test.That(t, s.Setting("CH2:SCALE"), test.ShouldEqual, "0.5")
}

func TestChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("MDO3024", func(t *testing.T) {
		_, sc := setup(t, "MDO3024")
		_, err := sc.Oscilloscope.Channel(5)
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
		ch, err := sc.Oscilloscope.Channel(2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ch.Name(), test.ShouldEqual, "CH2")

		test.That(t, ch.SetLabel(ctx, "clock"), test.ShouldBeNil)
		label, err := ch.Label(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, label, test.ShouldEqual, "clock")

		test.That(t, ch.SetInvert(ctx, true), test.ShouldBeNil)
		inv, err := ch.Invert(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, inv, test.ShouldBeTrue)

		unit, err := ch.YUnit(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, unit, test.ShouldEqual, "V")

		model, err := ch.Probe.Model(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, model, test.ShouldEqual, "TPP0250")
		gain, err := ch.Probe.Gain(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, gain, test.ShouldEqual, 0.1)
		z, err := ch.Probe.Impedance(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, z, test.ShouldEqual, 1e7)
	})

	t.Run("TDS3014B", func(t *testing.T) {
		_, sc := setup(t, "TDS3014B")
		ch, err := sc.Oscilloscope.Channel(1)
		test.That(t, err, test.ShouldBeNil)

		_, err = ch.Label(ctx)
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
		_, err = ch.Termination(ctx)
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
		test.That(t, errors.Is(ch.Probe.SetGain(ctx, 10), scope.ErrNotSupported), test.ShouldBeTrue)

		model, err := ch.Probe.Model(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, model, test.ShouldEqual, "1X")
		z, err := ch.Probe.Impedance(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, z, test.ShouldEqual, 1e6)
	})
}

func TestHorizontal(t *testing.T) {
	ctx := context.Background()
	s, sc := setup(t, "MDO3024")
	o := sc.Oscilloscope

	mode, err := o.DelayMode(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, scope.PretriggerPercent)
	pos, err := o.HorizontalPosition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, 50.0)

	test.That(t, o.SetDelayMode(ctx, scope.DelayTime), test.ShouldBeNil)
	test.That(t, o.SetHorizontalPosition(ctx, 1e-3), test.ShouldBeNil)
	test.That(t, s.Setting("HORIZONTAL:DELAY:TIME"), test.ShouldEqual, "0.001")

	rate, err := o.SampleRate(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, rate, test.ShouldEqual, 2.5e9)

	test.That(t, o.SetSingleAcquisition(ctx, true), test.ShouldBeNil)
	single, err := o.SingleAcquisition(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, single, test.ShouldBeTrue)

	test.That(t, o.SetRunning(ctx, false), test.ShouldBeNil)
	running, err := o.Running(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, running, test.ShouldBeFalse)

	test.That(t, o.ForceTrigger(ctx), test.ShouldBeNil)
	state, err := o.TriggerState(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, state, test.ShouldEqual, "TRIGGER")
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()

	t.Run("A", func(t *testing.T) {
		_, sc := setup(t, "MDO3024")
		tr := sc.Oscilloscope.Trigger

		settings, err := tr.Settings(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, settings.Kind, test.ShouldEqual, scope.TriggerEdge)
		test.That(t, *settings.Edge, test.ShouldResemble, scope.EdgeTrigger{Coupling: "DC", Slope: "RISE", Source: "CH1"})
		test.That(t, settings.Pulse, test.ShouldBeNil)

		test.That(t, tr.SetKind(ctx, scope.TriggerPulse), test.ShouldBeNil)
		settings, err = tr.Settings(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, settings.Kind, test.ShouldEqual, scope.TriggerPulse)
		test.That(t, settings.Pulse.Width, test.ShouldEqual, 8e-9)
		test.That(t, settings.Pulse.Polarity, test.ShouldEqual, "POSITIVE")

		params, err := tr.Parameters(ctx)
		test.That(t, err, test.ShouldBeNil)
		holdoff, err := params.Float("HOLDOFF:TIME")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, holdoff, test.ShouldEqual, 2e-8)

		test.That(t, tr.SetLevel50(ctx), test.ShouldBeNil)
		level, err := tr.Level(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, 0.5)

		_, err = tr.State(ctx)
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("B", func(t *testing.T) {
		_, sc := setup(t, "TDS3014B")
		tr := sc.Oscilloscope.BTrigger

		on, err := tr.State(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, on, test.ShouldBeFalse)
		n, err := tr.Events(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, 2)
		test.That(t, tr.SetState(ctx, true), test.ShouldBeNil)
		on, err = tr.State(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, on, test.ShouldBeTrue)

		_, err = tr.Kind(ctx)
		test.That(t, errors.Is(err, scope.ErrNotSupported), test.ShouldBeTrue)
	})

	t.Run("kind", func(t *testing.T) {
		k, err := scope.ParseTriggerKind(" logic ")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, k, test.ShouldEqual, scope.TriggerLogic)
		test.That(t, k.String(), test.ShouldEqual, "LOGIC")
		_, err = scope.ParseTriggerKind("video")
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestMeasurement(t *testing.T) {
	ctx := context.Background()
	s, sc := setup(t, "MDO3024")
	m := sc.Oscilloscope.Measurement
	test.That(t, m.Slots(), test.ShouldEqual, 4)

	slot, err := m.Add(ctx, "ch2", "pk2pk")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, slot.Number(), test.ShouldEqual, 1)
	test.That(t, s.Setting("MEASUREMENT:MEAS1:SOURCE"), test.ShouldEqual, "CH2")
	test.That(t, s.Setting("MEASUREMENT:MEAS1:TYPE"), test.ShouldEqual, "PK2PK")

	slot, err = m.Add(ctx, "CH1", "FREQUENCY")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, slot.Number(), test.ShouldEqual, 2)

	test.That(t, m.Remove(ctx, 1), test.ShouldBeNil)
	slot, err = m.Slot(1)
	test.That(t, err, test.ShouldBeNil)
	on, err := slot.State(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, on, test.ShouldBeFalse)

	unit, err := slot.Unit(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, unit, test.ShouldEqual, "Hz")

	for n := 0; n < 3; n++ {
		_, err = m.Add(ctx, "CH1", "MEAN")
		test.That(t, err, test.ShouldBeNil)
	}
	_, err = m.Add(ctx, "CH1", "MEAN")
	test.That(t, errors.Is(err, scope.ErrNoFreeSlot), test.ShouldBeTrue)

	_, err = m.Slot(5)
	var verr *waveform.ValidationError
	test.That(t, errors.As(err, &verr), test.ShouldBeTrue)
}

func TestDVM(t *testing.T) {
	ctx := context.Background()
	_, sc := setup(t, "MDO3024")

	v, err := sc.DVM.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 1.25)
	f, err := sc.DVM.Frequency(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, 1e3)

	test.That(t, sc.DVM.SetMode(ctx, "acrms"), test.ShouldBeNil)
	mode, err := sc.DVM.Mode(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, "ACRMS")
}

func TestFileSystem(t *testing.T) {
	ctx := context.Background()
	s, sc := setup(t, "MSO4104B")
	fs := sc.FileSystem

	names, err := fs.Listing(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{"tek0000.png", "data"})

	test.That(t, fs.Mkdir(ctx, "captures"), test.ShouldBeNil)
	names, err = fs.Listing(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldContain, "captures")

	test.That(t, fs.SetCWD(ctx, "E:/captures"), test.ShouldBeNil)
	cwd, err := fs.CWD(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cwd, test.ShouldEqual, "E:/captures")

	test.That(t, fs.Mount(ctx, "I:", "nas", "/scope", "user", "secret"), test.ShouldBeNil)
	test.That(t, s.Setting("FILESYSTEM:MOUNT:DRIVE"), test.ShouldEqual, `"I:;nas;/scope;user;secret"`)

	test.That(t, sc.SaveImage(ctx, "shot.png", "png"), test.ShouldBeNil)
	test.That(t, s.Setting("SAVE:IMAGE:FILEFORMAT"), test.ShouldEqual, "PNG")
	test.That(t, s.Setting("SAVE:IMAGE"), test.ShouldEqual, `"shot.png"`)

	err = sc.SaveImage(ctx, "shot.jpg", "JPEG")
	var verr *waveform.ValidationError
	test.That(t, errors.As(err, &verr), test.ShouldBeTrue)
}
