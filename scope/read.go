package scope

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/transport"
	"github.com/neilo40/tek_remote/waveform"
)

// ReadRequest selects what Read transfers.
type ReadRequest struct {
	// Channels are channel specifications such as CH1, CH1:4 or several single channels.
	Channels []string
	// Samples is the part of the record to transfer. The zero value is the whole record.
	Samples waveform.SampleRange
	// Fresh runs a new single-sequence acquisition before the transfer instead of reading
	// the last completed one.
	Fresh bool
	// Timeout bounds the fresh acquisition. Zero or less waits indefinitely.
	Timeout time.Duration
}

// preambleQuery returns the preamble query and the header the device prefixes its answer
// with.
func preambleQuery(family instrument.Family) (string, string) {
	if family == instrument.TDS3000 {
		return "WFMPRE?", ":WFMPRE:"
	}
	return "WFMOUTPRE?", ":WFMOUTPRE:"
}

// readPreamble fetches the preamble of the current data source. It is never cached since
// the horizontal and vertical settings may change between reads.
func readPreamble(ctx context.Context, in *instrument.Instrument) (waveform.Preamble, error) {
	query, header := preambleQuery(in.Family())
	var raw string
	err := in.WithHeader(ctx, func(ctx context.Context) error {
		var err error
		raw, err = in.Query(ctx, query)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading preamble")
	}
	p := waveform.ParsePreamble(raw, header)
	if err := p.Check(); err != nil {
		return nil, err
	}
	return p, nil
}

func offsetTime(t time.Time, seconds float64) time.Time {
	return t.Add(time.Duration(math.Round(seconds * float64(time.Second))))
}

// Read transfers the requested channels of one acquisition and calibrates them. Acquisition
// is stopped during the transfer so every channel comes from the same acquisition instance,
// and the previous run state is restored afterward. The time axis and units come from the
// first requested channel.
func (o *Oscilloscope) Read(ctx context.Context, req ReadRequest) (w *waveform.Waveform, err error) {
	channels, err := waveform.ParseChannels(len(o.channels), req.Channels...)
	if err != nil {
		return nil, err
	}
	if err := req.Samples.Validate(); err != nil {
		return nil, err
	}
	recordLength, err := o.RecordLength(ctx)
	if err != nil {
		return nil, err
	}
	start, stop, err := req.Samples.Resolve(recordLength)
	if err != nil {
		return nil, err
	}

	err = o.in.Validate(ctx, func(ctx context.Context) error {
		for _, cmd := range []string{
			"DATA:START " + strconv.Itoa(start),
			"DATA:STOP " + strconv.Itoa(stop),
			"DATA:WIDTH 1",
			"DATA:ENCDG RIBINARY",
		} {
			if err := o.in.Write(ctx, cmd); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "configuring transfer")
	}

	state, err := o.in.Query(ctx, "ACQUIRE:STATE?")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, o.in.Write(context.WithoutCancel(ctx), "ACQUIRE:STATE "+state))
	}()

	if req.Fresh {
		status, err := o.ctl.Acquire(ctx, req.Timeout)
		if err != nil {
			return nil, err
		}
		if status != acquire.StatusComplete {
			return nil, errors.Wrapf(acquire.ErrAcquisitionFailed, "sequence finished %s", status)
		}
	}
	if err := o.in.Write(ctx, "ACQUIRE:STATE STOP"); err != nil {
		return nil, err
	}
	deviceTime, err := o.in.DeviceTime(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, 0, len(channels))
	var ref waveform.Preamble
	for i, ch := range channels {
		if err := o.in.Write(ctx, "DATA:SOURCE "+ch); err != nil {
			return nil, err
		}
		p, err := readPreamble(ctx, o.in)
		if err != nil {
			return nil, errors.Wrap(err, ch)
		}
		scale, err := p.Scale()
		if err != nil {
			return nil, errors.Wrap(err, ch)
		}
		payload, err := o.in.QueryBinary(ctx, "CURVE?")
		if err != nil {
			return nil, errors.Wrapf(err, "transferring %s", ch)
		}
		if want := stop - start + 1; len(payload) != want {
			return nil, errors.Errorf("%s returned %d samples, requested %d", ch, len(payload), want)
		}
		rows = append(rows, waveform.Calibrate(transport.DecodeInt8(payload), scale))
		if i == 0 {
			ref = p
		}
	}

	w, err = waveform.New(channels, rows)
	if err != nil {
		return nil, err
	}
	if err := decorate(w, ref, deviceTime); err != nil {
		return nil, errors.Wrap(err, channels[0])
	}
	w.T0 = offsetTime(deviceTime, w.StartOffset)
	return w, nil
}

// decorate copies the time axis and units of the reference preamble onto w. T0 is set to
// the device time; callers add the start offset where it applies.
func decorate(w *waveform.Waveform, ref waveform.Preamble, deviceTime time.Time) error {
	var err error
	if w.Dt, err = ref.Float(waveform.KeyXIncr); err != nil {
		return err
	}
	if w.StartOffset, err = ref.Float(waveform.KeyXZero); err != nil {
		return err
	}
	scale, err := ref.Scale()
	if err != nil {
		return err
	}
	w.T0 = deviceTime
	w.XUnit = ref.String(waveform.KeyXUnit)
	w.YUnit = ref.String(waveform.KeyYUnit)
	w.YPosition = scale.YOff * scale.YMult
	w.YOffset = scale.YZero
	return nil
}

// ReadArray is Read without the time axis: one row of calibrated samples per channel.
func (o *Oscilloscope) ReadArray(ctx context.Context, req ReadRequest) (*mat.Dense, error) {
	w, err := o.Read(ctx, req)
	if err != nil {
		return nil, err
	}
	return w.Matrix(), nil
}
