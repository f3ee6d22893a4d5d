// Package instrument provides the command channel to a connected Tektronix oscilloscope:
// serialized writes and queries, command error checking, identification and model dispatch.
package instrument

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// Standard event status register bits.
const (
	ESROperationComplete = 1
	ESRExecutionError    = 16
	ESRCommandError      = 32
)

// Status byte bits.
const (
	STBMessageAvailable = 16
	STBEventSummary     = 32
	STBServiceRequest   = 64
)

// Options configure a connection.
type Options struct {
	Logger logging.Logger
	Clock  clock.Clock
}

// Instrument is a connected oscilloscope. Every exchange is serialized; the instrument does
// not support independent concurrent operations.
type Instrument struct {
	mu       sync.Mutex
	t        transport.Transport
	logger   logging.Logger
	clock    clock.Clock
	idn      IDN
	family   Family
	features Features
}

// New wraps a transport without talking to the device.
func New(t transport.Transport, opts Options) *Instrument {
	in := &Instrument{t: t, logger: opts.Logger, clock: opts.Clock}
	if in.logger == nil {
		in.logger = logging.NewNopLogger()
	}
	if in.clock == nil {
		in.clock = clock.New()
	}
	return in
}

// Dial opens the resource and identifies the device on it.
func Dial(ctx context.Context, resource string, topts transport.Options, opts Options) (*Instrument, error) {
	if topts.Logger == nil {
		topts.Logger = opts.Logger
	}
	t, err := transport.Open(ctx, resource, topts)
	if err != nil {
		return nil, err
	}
	in, err := Open(ctx, t, opts)
	if err != nil {
		return nil, multierr.Combine(err, t.Close())
	}
	return in, nil
}

// Open identifies the device, checks that it is a supported Tektronix model and puts it into
// the reporting mode the rest of the package expects.
func Open(ctx context.Context, t transport.Transport, opts Options) (*Instrument, error) {
	in := New(t, opts)
	if err := in.Write(ctx, "*CLS"); err != nil {
		return nil, err
	}
	resp, err := in.Query(ctx, "*IDN?")
	if err != nil {
		return nil, err
	}
	idn, err := ParseIDN(resp)
	if err != nil {
		return nil, err
	}
	if idn.Manufacturer != "TEKTRONIX" {
		return nil, errors.Errorf("device %s is not a Tektronix model", idn.Model)
	}
	family, err := LookupFamily(idn.Model)
	if err != nil {
		return nil, err
	}
	in.idn, in.family = idn, family
	for _, cmd := range []string{"HEADER OFF", "DESE 255", "VERBOSE ON"} {
		if err := in.Write(ctx, cmd); err != nil {
			return nil, err
		}
	}
	if in.features, err = in.queryFeatures(ctx); err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	in.logger.Infow("connected", "model", idn.Model, "serial", idn.SerialNumber, "firmware", idn.FirmwareVersion)
	return in, nil
}

// IDN returns the identification read at connect time.
func (in *Instrument) IDN() IDN {
	return in.idn
}

// Family returns the model family.
func (in *Instrument) Family() Family {
	return in.family
}

// Features returns the configuration read at connect time.
func (in *Instrument) Features() Features {
	return in.features
}

// Logger returns the instrument's logger.
func (in *Instrument) Logger() logging.Logger {
	return in.logger
}

// Clock returns the clock used for host time.
func (in *Instrument) Clock() clock.Clock {
	return in.clock
}

func (in *Instrument) String() string {
	return fmt.Sprintf("<Tektronix %s>", in.idn.Model)
}

// Close closes the transport.
func (in *Instrument) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.t.Close()
}

// Write sends a command.
func (in *Instrument) Write(ctx context.Context, cmd string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.logger.Debugw("write", "cmd", cmd)
	return in.t.Write(ctx, cmd)
}

// Writef formats and sends a command.
func (in *Instrument) Writef(ctx context.Context, format string, args ...interface{}) error {
	return in.Write(ctx, fmt.Sprintf(format, args...))
}

// Query sends a query and returns the trimmed answer.
func (in *Instrument) Query(ctx context.Context, cmd string) (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	resp, err := in.t.Query(ctx, cmd)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	in.logger.Debugw("query", "cmd", cmd, "resp", resp)
	return resp, nil
}

// QueryString returns the answer with surrounding quotes removed.
func (in *Instrument) QueryString(ctx context.Context, cmd string) (string, error) {
	resp, err := in.Query(ctx, cmd)
	if err != nil {
		return "", err
	}
	return strings.Trim(resp, `"'`), nil
}

// QueryFloat parses the answer as a float.
func (in *Instrument) QueryFloat(ctx context.Context, cmd string) (float64, error) {
	resp, err := in.Query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s returned %q", cmd, resp)
	}
	return v, nil
}

// QueryInt parses the answer as an integer. Answers in NR3 form such as 1.0E+3 are accepted.
func (in *Instrument) QueryInt(ctx context.Context, cmd string) (int, error) {
	resp, err := in.Query(ctx, cmd)
	if err != nil {
		return 0, err
	}
	if v, err := strconv.Atoi(resp); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s returned %q", cmd, resp)
	}
	return int(f), nil
}

// QueryBool interprets 1/ON as true and 0/OFF as false.
func (in *Instrument) QueryBool(ctx context.Context, cmd string) (bool, error) {
	resp, err := in.Query(ctx, cmd)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(resp) {
	case "1", "ON":
		return true, nil
	case "0", "OFF":
		return false, nil
	}
	return false, errors.Errorf("%s returned %q, expected a boolean", cmd, resp)
}

// QueryBinary sends a query answered by a definite-length block and returns its payload.
func (in *Instrument) QueryBinary(ctx context.Context, cmd string) ([]byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	b, err := in.t.QueryBinary(ctx, cmd)
	if err != nil {
		return nil, err
	}
	in.logger.Debugw("binary query", "cmd", cmd, "bytes", len(b))
	return b, nil
}

// ReadStatusByte reads the status byte without waiting for pending operations.
func (in *Instrument) ReadStatusByte(ctx context.Context) (byte, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.t.ReadStatusByte(ctx)
}

// Validate runs op with command error reporting forced on and returns a *CommandError if the
// device flagged one. The device event status enable register is restored on every path.
func (in *Instrument) Validate(ctx context.Context, op func(ctx context.Context) error) (err error) {
	if err := in.Write(ctx, "*CLS"); err != nil {
		return err
	}
	dese, err := in.QueryInt(ctx, "DESE?")
	if err != nil {
		return err
	}
	if err := in.Writef(ctx, "DESE %d", ESRCommandError); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, in.Writef(context.WithoutCancel(ctx), "DESE %d", dese))
	}()

	if err := op(ctx); err != nil {
		return err
	}
	esr, err := in.QueryInt(ctx, "*ESR?")
	if err != nil {
		return err
	}
	if esr&ESRCommandError == 0 {
		return nil
	}
	msg, err := in.Query(ctx, "EVMSG?")
	if err != nil {
		return err
	}
	cerr := parseEventMessage(msg)
	in.logger.Debugw("command rejected", "code", cerr.Code, "msg", cerr.Message)
	return cerr
}

// Set writes one command under Validate.
func (in *Instrument) Set(ctx context.Context, cmd string) error {
	return in.Validate(ctx, func(ctx context.Context) error {
		return in.Write(ctx, cmd)
	})
}

// Setf formats a command and writes it under Validate.
func (in *Instrument) Setf(ctx context.Context, format string, args ...interface{}) error {
	return in.Set(ctx, fmt.Sprintf(format, args...))
}

// WithHeader runs fn with response headers turned on and restores the previous header mode.
func (in *Instrument) WithHeader(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	orig, err := in.Query(ctx, "HEADER?")
	if err != nil {
		return err
	}
	// HEADER? itself is answered with a header when headers are on
	orig = strings.TrimPrefix(orig, ":HEADER ")
	if err := in.Write(ctx, "HEADER ON"); err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, in.Write(context.WithoutCancel(ctx), "HEADER "+orig))
	}()
	return fn(ctx)
}

// DeviceTime reads the device's date and time. The device clock has no zone; it is taken
// to be host local time.
func (in *Instrument) DeviceTime(ctx context.Context) (time.Time, error) {
	t, err := in.QueryString(ctx, "TIME?")
	if err != nil {
		return time.Time{}, err
	}
	d, err := in.QueryString(ctx, "DATE?")
	if err != nil {
		return time.Time{}, err
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", d+" "+t, time.Local)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing device time %q %q", d, t)
	}
	return ts, nil
}

// SetClock sets the device date and time to the host's.
func (in *Instrument) SetClock(ctx context.Context) error {
	now := in.clock.Now()
	return in.Validate(ctx, func(ctx context.Context) error {
		if err := in.Writef(ctx, "DATE '%s'", now.Format("2006-01-02")); err != nil {
			return err
		}
		return in.Writef(ctx, "TIME '%s'", now.Format("15:04:05"))
	})
}

// LockFrontPanel locks the front panel controls and, if message is not empty, shows it in
// a message box.
func (in *Instrument) LockFrontPanel(ctx context.Context, message string) error {
	return in.Validate(ctx, func(ctx context.Context) error {
		if err := in.Write(ctx, "LOCK ALL"); err != nil {
			return err
		}
		if message == "" {
			return nil
		}
		if len(message) > 1000 {
			message = message[:1000]
		}
		for _, cmd := range []string{fmt.Sprintf("MESSAGE:SHOW '%s'", message), "MESSAGE:BOX 0, 0", "MESSAGE:STATE ON"} {
			if err := in.Write(ctx, cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnlockFrontPanel unlocks the front panel and clears the message box.
func (in *Instrument) UnlockFrontPanel(ctx context.Context) error {
	return in.Validate(ctx, func(ctx context.Context) error {
		for _, cmd := range []string{"UNLOCK ALL", "MESSAGE:CLEAR", "MESSAGE:STATE OFF"} {
			if err := in.Write(ctx, cmd); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset restores the factory default settings.
func (in *Instrument) Reset(ctx context.Context) error {
	return in.Set(ctx, "*RST")
}
