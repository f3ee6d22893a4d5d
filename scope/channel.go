package scope

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/instrument"
)

// Channel is an analog input.
type Channel struct {
	in     *instrument.Instrument
	family instrument.Family
	n      int

	Probe *Probe
}

// Name returns the source name, e.g. CH1.
func (c *Channel) Name() string {
	return "CH" + strconv.Itoa(c.n)
}

func (c *Channel) header(field string) string {
	return fmt.Sprintf("CH%d:%s", c.n, field)
}

func (c *Channel) query(ctx context.Context, field string) (string, error) {
	return c.in.Query(ctx, c.header(field)+"?")
}

func (c *Channel) queryFloat(ctx context.Context, field string) (float64, error) {
	return c.in.QueryFloat(ctx, c.header(field)+"?")
}

func (c *Channel) set(ctx context.Context, field string, value interface{}) error {
	return c.in.Setf(ctx, "%s %v", c.header(field), value)
}

// Bandwidth returns the bandwidth limit: FULL, TWENTY, ONEFIFTY or a frequency in hertz.
func (c *Channel) Bandwidth(ctx context.Context) (string, error) {
	return c.query(ctx, "BANDWIDTH")
}

func (c *Channel) SetBandwidth(ctx context.Context, bw string) error {
	return c.set(ctx, "BANDWIDTH", strings.ToUpper(bw))
}

// Coupling returns AC, DC or GND.
func (c *Channel) Coupling(ctx context.Context) (string, error) {
	return c.query(ctx, "COUPLING")
}

func (c *Channel) SetCoupling(ctx context.Context, coupling string) error {
	return c.set(ctx, "COUPLING", strings.ToUpper(coupling))
}

// Invert reports whether the channel is displayed inverted.
func (c *Channel) Invert(ctx context.Context) (bool, error) {
	return c.in.QueryBool(ctx, c.header("INVERT")+"?")
}

func (c *Channel) SetInvert(ctx context.Context, invert bool) error {
	return c.set(ctx, "INVERT", onOff(invert))
}

// Offset returns the value subtracted from the signal before acquisition, in y units.
func (c *Channel) Offset(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, "OFFSET")
}

func (c *Channel) SetOffset(ctx context.Context, v float64) error {
	return c.set(ctx, "OFFSET", v)
}

// Position returns the vertical position in divisions from the center graticule.
func (c *Channel) Position(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, "POSITION")
}

func (c *Channel) SetPosition(ctx context.Context, divs float64) error {
	return c.set(ctx, "POSITION", divs)
}

// Scale returns the vertical gain in y units per division.
func (c *Channel) Scale(ctx context.Context) (float64, error) {
	return c.queryFloat(ctx, "SCALE")
}

func (c *Channel) SetScale(ctx context.Context, v float64) error {
	return c.set(ctx, "SCALE", v)
}

// YUnit returns the vertical unit, V or A.
func (c *Channel) YUnit(ctx context.Context) (string, error) {
	return c.in.QueryString(ctx, c.header("YUNITS")+"?")
}

func (c *Channel) SetYUnit(ctx context.Context, unit string) error {
	return c.in.Setf(ctx, "%s '%s'", c.header("YUNITS"), unit)
}

// Label returns the channel label.
func (c *Channel) Label(ctx context.Context) (string, error) {
	if c.family == instrument.TDS3000 {
		return "", notSupported(c.in.IDN().Model, "channel label")
	}
	return c.in.QueryString(ctx, c.header("LABEL")+"?")
}

func (c *Channel) SetLabel(ctx context.Context, label string) error {
	if c.family == instrument.TDS3000 {
		return notSupported(c.in.IDN().Model, "channel label")
	}
	return c.in.Setf(ctx, "%s '%s'", c.header("LABEL"), label)
}

// Termination returns the input termination in ohms.
func (c *Channel) Termination(ctx context.Context) (float64, error) {
	if c.family == instrument.TDS3000 {
		return 0, notSupported(c.in.IDN().Model, "termination")
	}
	return c.queryFloat(ctx, "TERMINATION")
}

func (c *Channel) SetTermination(ctx context.Context, ohms float64) error {
	if c.family == instrument.TDS3000 {
		return notSupported(c.in.IDN().Model, "termination")
	}
	return c.set(ctx, "TERMINATION", ohms)
}

// Probe is the probe attached to a channel.
type Probe struct {
	ch *Channel
}

// Model returns the probe model.
func (p *Probe) Model(ctx context.Context) (string, error) {
	if p.ch.family == instrument.TDS3000 {
		return p.ch.in.QueryString(ctx, p.ch.header("PROBE:ID:TYPE")+"?")
	}
	return p.ch.in.QueryString(ctx, p.ch.header("PROBE:MODEL")+"?")
}

// Gain returns the probe gain (output/input). TDS3000 models report the attenuation.
func (p *Probe) Gain(ctx context.Context) (float64, error) {
	if p.ch.family == instrument.TDS3000 {
		return p.ch.queryFloat(ctx, "PROBE")
	}
	return p.ch.queryFloat(ctx, "PROBE:GAIN")
}

func (p *Probe) SetGain(ctx context.Context, gain float64) error {
	if p.ch.family == instrument.TDS3000 {
		return notSupported(p.ch.in.IDN().Model, "probe gain")
	}
	return p.ch.set(ctx, "PROBE:GAIN", gain)
}

// Impedance returns the probe input resistance in ohms.
func (p *Probe) Impedance(ctx context.Context) (float64, error) {
	if p.ch.family != instrument.TDS3000 {
		return p.ch.queryFloat(ctx, "PROBE:RESISTANCE")
	}
	v, err := p.ch.query(ctx, "IMPEDANCE")
	if err != nil {
		return 0, err
	}
	switch v {
	case "MEG":
		return 1e6, nil
	case "FIFTY":
		return 50, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "impedance %q", v)
	}
	return f, nil
}
