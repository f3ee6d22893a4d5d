package scope

import (
	"context"
	"strings"

	"github.com/neilo40/tek_remote/instrument"
)

// DVM is the digital voltmeter option of MDO3000 models.
type DVM struct {
	in *instrument.Instrument
}

// Mode returns ACRMS, ACDCRMS, DC, FREQUENCY or OFF.
func (d *DVM) Mode(ctx context.Context) (string, error) {
	return d.in.Query(ctx, "DVM:MODE?")
}

func (d *DVM) SetMode(ctx context.Context, mode string) error {
	return d.in.Setf(ctx, "DVM:MODE %s", strings.ToUpper(mode))
}

func (d *DVM) Source(ctx context.Context) (string, error) {
	return d.in.Query(ctx, "DVM:SOURCE?")
}

func (d *DVM) SetSource(ctx context.Context, source string) error {
	return d.in.Setf(ctx, "DVM:SOURCE %s", strings.ToUpper(source))
}

func (d *DVM) Value(ctx context.Context) (float64, error) {
	return d.in.QueryFloat(ctx, "DVM:MEASUREMENT:VALUE?")
}

// Min, Max and Average are taken over the measurement history since the last reset.
func (d *DVM) Min(ctx context.Context) (float64, error) {
	return d.in.QueryFloat(ctx, "DVM:MEASUREMENT:HISTORY:MINIMUM?")
}

func (d *DVM) Max(ctx context.Context) (float64, error) {
	return d.in.QueryFloat(ctx, "DVM:MEASUREMENT:HISTORY:MAXIMUM?")
}

func (d *DVM) Average(ctx context.Context) (float64, error) {
	return d.in.QueryFloat(ctx, "DVM:MEASUREMENT:HISTORY:AVERAGE?")
}

// Frequency returns the frequency of the source in hertz.
func (d *DVM) Frequency(ctx context.Context) (float64, error) {
	return d.in.QueryFloat(ctx, "DVM:MEASUREMENT:FREQUENCY?")
}
