// Package scope exposes the configuration and measurement surface of a connected Tektronix
// oscilloscope. A Scope is composed once at connect time from the model family and the
// configuration the device reports; subsystems the model lacks are nil.
package scope

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
	"github.com/neilo40/tek_remote/waveform"
)

// ErrNotSupported is returned by properties the connected model does not have.
var ErrNotSupported = errors.New("not supported by this model")

var displaySourcePattern = regexp.MustCompile(`^(REF|BUS|D)\d+$`)

// Options configure a Scope.
type Options struct {
	// Acquire configures the acquisition controller. Its logger defaults to the instrument's.
	Acquire acquire.Options
}

// Scope is a connected oscilloscope.
type Scope struct {
	in     *instrument.Instrument
	logger logging.Logger

	Oscilloscope *Oscilloscope
	// Spectrum is nil unless the model has an RF input.
	Spectrum *SpectrumAnalyzer
	// DVM is nil unless the digital voltmeter option is installed.
	DVM *DVM
	// FileSystem is nil on models without a mass storage command set.
	FileSystem *FileSystem
}

// New composes a scope for an opened instrument.
func New(in *instrument.Instrument, opts Options) *Scope {
	if opts.Acquire.Logger == nil {
		opts.Acquire.Logger = in.Logger()
	}
	s := &Scope{
		in:           in,
		logger:       in.Logger(),
		Oscilloscope: newOscilloscope(in, acquire.NewController(in, opts.Acquire)),
	}
	features := in.Features()
	if features.RFChannels > 0 {
		s.Spectrum = &SpectrumAnalyzer{in: in}
	}
	if features.DVM {
		s.DVM = &DVM{in: in}
	}
	if in.Family() != instrument.TDS3000 {
		s.FileSystem = &FileSystem{in: in}
	}
	return s
}

// Dial opens resource, identifies the device and composes a scope for it.
func Dial(ctx context.Context, resource string, topts transport.Options, iopts instrument.Options, opts Options) (*Scope, error) {
	in, err := instrument.Dial(ctx, resource, topts, iopts)
	if err != nil {
		return nil, err
	}
	return New(in, opts), nil
}

// Instrument returns the underlying command channel.
func (s *Scope) Instrument() *instrument.Instrument {
	return s.in
}

// Model returns the model name, e.g. MDO3024.
func (s *Scope) Model() string {
	return s.in.IDN().Model
}

// SerialNumber returns the serial number reported by *IDN?.
func (s *Scope) SerialNumber() string {
	return s.in.IDN().SerialNumber
}

// FirmwareVersion returns the firmware version reported by *IDN?.
func (s *Scope) FirmwareVersion() string {
	return s.in.IDN().FirmwareVersion
}

// Features returns the installed options keyed by their CONFIGURATION header.
func (s *Scope) Features() map[string]interface{} {
	return s.in.Features().Map()
}

func (s *Scope) String() string {
	return s.in.String()
}

// Close closes the connection.
func (s *Scope) Close() error {
	return s.in.Close()
}

// selection returns the display state of every source and the source the front panel
// controls.
func (s *Scope) selection(ctx context.Context) (map[string]bool, string, error) {
	var raw string
	err := s.in.WithHeader(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.in.Query(ctx, "SELECT?")
		return err
	})
	if err != nil {
		return nil, "", err
	}
	raw = strings.TrimPrefix(raw, ":SELECT:")
	shown := map[string]bool{}
	var control string
	for _, field := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), " ")
		if !ok {
			continue
		}
		if k == "CONTROL" {
			control = v
			continue
		}
		shown[k] = v == "1" || v == "ON"
	}
	return shown, control, nil
}

// Display returns the displayed sources in sorted order. The spectrum traces are reported
// together as RF.
func (s *Scope) Display(ctx context.Context) ([]string, error) {
	shown, _, err := s.selection(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for k, on := range shown {
		if !on {
			continue
		}
		if strings.HasPrefix(k, "RF_") {
			k = "RF"
		}
		out = append(out, k)
	}
	out = lo.Uniq(out)
	sort.Strings(out)
	return out, nil
}

// displaySources expands display specifications into SELECT sources.
func (s *Scope) displaySources(specs []string) ([]string, error) {
	var out []string
	for _, spec := range specs {
		up := strings.ToUpper(strings.TrimSpace(spec))
		switch {
		case strings.HasPrefix(up, "CH"):
			chs, err := waveform.ParseChannels(s.in.Features().AnalogChannels, up)
			if err != nil {
				return nil, err
			}
			out = append(out, chs...)
		case up == "RF":
			if s.Spectrum == nil {
				return nil, &waveform.ValidationError{Input: spec, Reason: "model has no RF input"}
			}
			out = append(out, "RF_NORMAL")
		case up == "MATH" || displaySourcePattern.MatchString(up):
			out = append(out, up)
		default:
			return nil, &waveform.ValidationError{Input: spec, Reason: "not a displayable source"}
		}
	}
	return lo.Uniq(out), nil
}

// SetDisplay shows exactly the given sources: channel specifications such as CH1:3, RF,
// MATH, REFn or BUSn. Everything else is turned off.
func (s *Scope) SetDisplay(ctx context.Context, specs ...string) error {
	want, err := s.displaySources(specs)
	if err != nil {
		return err
	}
	shown, _, err := s.selection(ctx)
	if err != nil {
		return err
	}
	current := lo.Filter(lo.Keys(shown), func(k string, _ int) bool { return shown[k] })
	off, on := lo.Difference(current, want)
	sort.Strings(off)
	return s.in.Validate(ctx, func(ctx context.Context) error {
		for _, src := range off {
			if err := s.in.Writef(ctx, "SELECT:%s OFF", src); err != nil {
				return err
			}
		}
		for _, src := range on {
			if err := s.in.Writef(ctx, "SELECT:%s ON", src); err != nil {
				return err
			}
		}
		return nil
	})
}

// ImageFormat is a screen capture file format.
type ImageFormat string

// Screen capture formats.
const (
	PNG  ImageFormat = "PNG"
	BMP  ImageFormat = "BMP"
	TIFF ImageFormat = "TIFF"
)

// SaveImage saves a screen capture to path on the instrument's file system. A bare file
// name is saved in the current working directory.
func (s *Scope) SaveImage(ctx context.Context, path string, format ImageFormat) error {
	if s.FileSystem == nil {
		return notSupported(s.Model(), "save image")
	}
	format = ImageFormat(strings.ToUpper(string(format)))
	if !lo.Contains([]ImageFormat{PNG, BMP, TIFF}, format) {
		return &waveform.ValidationError{Input: string(format), Reason: "image format must be PNG, BMP or TIFF"}
	}
	return s.in.Validate(ctx, func(ctx context.Context) error {
		if err := s.in.Writef(ctx, "SAVE:IMAGE:FILEFORMAT %s", format); err != nil {
			return err
		}
		return s.in.Writef(ctx, "SAVE:IMAGE '%s'", path)
	})
}

// FullBandwidth returns the analog bandwidth with the bandwidth limit off. Only TDS3000
// models encode it in the model name.
func (s *Scope) FullBandwidth() (string, error) {
	bw := s.in.Features().FullBandwidth
	if bw == "" {
		return "", notSupported(s.Model(), "full bandwidth")
	}
	return bw, nil
}

// BatterySOC returns the battery state of charge in percent.
func (s *Scope) BatterySOC(ctx context.Context) (float64, error) {
	if s.in.Family() != instrument.TDS3000 {
		return 0, notSupported(s.Model(), "battery")
	}
	gauge, err := s.in.QueryInt(ctx, "POWER:BATTERY:GASGAUGE?")
	if err != nil {
		return 0, err
	}
	// the gas gauge counts in fifteenths
	return 100 * float64(gauge) / 15, nil
}

func notSupported(model, what string) error {
	return errors.Wrap(ErrNotSupported, fmt.Sprintf("%s %s", model, what))
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
