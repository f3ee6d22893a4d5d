// Package main is a command line client for Tektronix oscilloscopes.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/config"
	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/scope"
	_ "github.com/neilo40/tek_remote/sim"
	_ "github.com/neilo40/tek_remote/transport/asrl"
	_ "github.com/neilo40/tek_remote/transport/usbtmc"
	_ "github.com/neilo40/tek_remote/transport/visa"
	"github.com/neilo40/tek_remote/waveform"
)

const (
	flagConfig     = "config"
	flagInstrument = "instrument"
	flagResource   = "resource"
	flagDebug      = "debug"

	flagChannels = "channels"
	flagSamples  = "samples"
	flagFresh    = "fresh"
	flagTimeout  = "timeout"
	flagOutput   = "output"
	flagDB       = "db"
)

func main() {
	var logger logging.Logger

	outputFlag := &cli.StringFlag{
		Name:    flagOutput,
		Aliases: []string{"o"},
		Usage:   "write CSV to `FILE` instead of stdout",
	}

	app := &cli.App{
		Name:  "tek_visa",
		Usage: "control a Tektronix oscilloscope",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load instruments from `FILE`",
			},
			&cli.StringFlag{
				Name:    flagInstrument,
				Aliases: []string{"i"},
				Usage:   "use the `NAME`d instrument from the config",
			},
			&cli.StringFlag{
				Name:    flagResource,
				Aliases: []string{"r"},
				Usage:   "connect to `RESOURCE` directly, e.g. TCPIP::192.168.1.70::INSTR or SIM::MDO3024",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("tek")
			} else {
				logger = logging.NewLogger("tek")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "idn",
				Usage: "print the identification of the instrument",
				Action: func(c *cli.Context) error {
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, _ config.Instrument) error {
						in := sc.Instrument()
						fmt.Fprintf(c.App.Writer, "model:    %s\nfamily:   %s\nserial:   %s\nfirmware: %s\n",
							sc.Model(), in.Family(), sc.SerialNumber(), sc.FirmwareVersion())
						return nil
					})
				},
			},
			{
				Name:  "features",
				Usage: "print the installed options",
				Action: func(c *cli.Context) error {
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, _ config.Instrument) error {
						features := sc.Features()
						keys := make([]string, 0, len(features))
						for k := range features {
							keys = append(keys, k)
						}
						sort.Strings(keys)
						for _, k := range keys {
							fmt.Fprintf(c.App.Writer, "%-20s %v\n", k, features[k])
						}
						return nil
					})
				},
			},
			{
				Name:  "read",
				Usage: "transfer calibrated waveforms as CSV",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  flagChannels,
						Value: cli.NewStringSlice("CH1"),
						Usage: "channels to read, e.g. CH1, CH1:4",
					},
					&cli.StringFlag{
						Name:  flagSamples,
						Value: "all",
						Usage: "samples to transfer: all, a count or start:stop",
					},
					&cli.BoolFlag{
						Name:  flagFresh,
						Usage: "run a new single sequence before the transfer",
					},
					&cli.DurationFlag{
						Name:  flagTimeout,
						Usage: "give up on a fresh acquisition after `DURATION`; overrides the config",
					},
					outputFlag,
				},
				Action: func(c *cli.Context) error {
					samples, err := waveform.ParseSampleRange(c.String(flagSamples))
					if err != nil {
						return err
					}
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, ic config.Instrument) error {
						req := scope.ReadRequest{
							Channels: c.StringSlice(flagChannels),
							Samples:  samples,
							Fresh:    c.Bool(flagFresh),
							Timeout:  ic.ReadTimeout,
						}
						if c.IsSet(flagTimeout) {
							req.Timeout = c.Duration(flagTimeout)
						}
						w, err := sc.Oscilloscope.Read(ctx, req)
						if err != nil {
							return err
						}
						logger.Infow("read", "channels", w.Channels, "samples", w.Len(), "t0", w.T0)
						return writeCSV(c, w)
					})
				},
			},
			{
				Name:  "spectrum",
				Usage: "transfer the RF spectrum as CSV",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagDB,
						Usage: "convert to the logarithmic unit shown on the instrument",
					},
					outputFlag,
				},
				Action: func(c *cli.Context) error {
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, _ config.Instrument) error {
						if sc.Spectrum == nil {
							return errors.Errorf("%s has no RF input", sc.Model())
						}
						w, err := sc.Spectrum.Read(ctx, c.Bool(flagDB))
						if err != nil {
							return err
						}
						return writeCSV(c, w)
					})
				},
			},
			{
				Name:  "set-clock",
				Usage: "set the instrument clock to the host time",
				Action: func(c *cli.Context) error {
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, _ config.Instrument) error {
						in := sc.Instrument()
						if err := in.SetClock(ctx); err != nil {
							return err
						}
						t, err := in.DeviceTime(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, t.Format("2006-01-02 15:04:05"))
						return nil
					})
				},
			},
			{
				Name:  "trigger",
				Usage: "print the trigger configuration",
				Action: func(c *cli.Context) error {
					return withScope(c, logger, func(ctx context.Context, sc *scope.Scope, _ config.Instrument) error {
						tr := sc.Oscilloscope.Trigger
						settings, err := tr.Settings(ctx)
						if err != nil {
							return err
						}
						level, err := tr.Level(ctx)
						if err != nil {
							return err
						}
						mode, err := tr.Mode(ctx)
						if err != nil {
							return err
						}
						w := c.App.Writer
						fmt.Fprintf(w, "kind:  %s\nmode:  %s\nlevel: %g\n", settings.Kind, mode, level)
						switch {
						case settings.Edge != nil:
							fmt.Fprintf(w, "source: %s\nslope: %s\ncoupling: %s\n",
								settings.Edge.Source, settings.Edge.Slope, settings.Edge.Coupling)
						case settings.Logic != nil:
							fmt.Fprintf(w, "function: %s\nclass: %s\n", settings.Logic.Function, settings.Logic.Class)
						case settings.Pulse != nil:
							fmt.Fprintf(w, "class: %s\nwidth: %g\nwhen: %s\npolarity: %s\n",
								settings.Pulse.Class, settings.Pulse.Width, settings.Pulse.When, settings.Pulse.Polarity)
						}
						return nil
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// resolve picks the instrument from --resource, or from the config file and --instrument.
func resolve(c *cli.Context) (config.Instrument, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Instrument{}, err
		}
	}
	if res := c.String(flagResource); res != "" {
		return config.Instrument{Name: res, Resource: res}, nil
	}
	return cfg.Instrument(c.String(flagInstrument))
}

func withScope(
	c *cli.Context,
	logger logging.Logger,
	fn func(ctx context.Context, sc *scope.Scope, ic config.Instrument) error,
) (err error) {
	ic, err := resolve(c)
	if err != nil {
		return err
	}
	aopts := ic.AcquireOptions(logger)
	aopts.Spinner = acquire.PtermSpinner
	sc, err := scope.Dial(c.Context, ic.Resource, ic.TransportOptions(logger), instrument.Options{Logger: logger}, scope.Options{Acquire: aopts})
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", ic.Name)
	}
	defer func() {
		err = multierr.Combine(err, sc.Close())
	}()
	return fn(c.Context, sc, ic)
}

func writeCSV(c *cli.Context, w *waveform.Waveform) (err error) {
	var out io.Writer = c.App.Writer
	if path := c.String(flagOutput); path != "" {
		var f *os.File
		if f, err = os.Create(path); err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, f.Close())
		}()
		out = f
	}
	return w.EncodeCSV(out)
}
