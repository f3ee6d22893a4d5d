// Package acquire drives a single-sequence acquisition to completion while the command
// channel stays free for status polling.
package acquire

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// Status is the outcome of a finished sequence.
type Status int

const (
	// StatusComplete means the device reported operation complete.
	StatusComplete Status = 0
	// StatusIncomplete means the sequence ended without operation complete, usually because
	// a command or execution error was flagged.
	StatusIncomplete Status = 1
)

func (s Status) String() string {
	if s == StatusComplete {
		return "complete"
	}
	return "incomplete"
}

var (
	// ErrAcquisitionTimeout is returned when the deadline passes before the sequence finishes.
	ErrAcquisitionTimeout = errors.New("acquisition timed out")
	// ErrCommunicationTimeout is returned when the transport stops answering while polling.
	ErrCommunicationTimeout = errors.New("communication with the instrument timed out")
	// ErrAcquisitionFailed is returned by readers when a sequence finished incomplete.
	ErrAcquisitionFailed = errors.New("acquisition failed")
	// ErrAcquisitionInProgress is returned when Acquire is called while another call on the
	// same controller is still running.
	ErrAcquisitionInProgress = errors.New("an acquisition is already in progress")
)

// Defaults for Options.
const (
	DefaultPollInterval     = time.Second
	DefaultFeedbackInterval = 500 * time.Millisecond
)

// Device is the part of an instrument the controller talks to.
type Device interface {
	Write(ctx context.Context, cmd string) error
	Query(ctx context.Context, cmd string) (string, error)
	QueryInt(ctx context.Context, cmd string) (int, error)
	ReadStatusByte(ctx context.Context) (byte, error)
}

// Options configure a Controller.
type Options struct {
	PollInterval     time.Duration
	FeedbackInterval time.Duration
	Clock            clock.Clock
	// Spinner creates the progress indicator. Nil disables it.
	Spinner SpinnerFactory
	Logger  logging.Logger
}

// Controller runs one acquisition at a time against a device.
type Controller struct {
	dev     Device
	opts    Options
	logger  logging.Logger
	clock   clock.Clock
	running atomic.Bool
	busy    atomic.Bool
}

// NewController returns a controller for dev.
func NewController(dev Device, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.FeedbackInterval <= 0 {
		opts.FeedbackInterval = DefaultFeedbackInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	return &Controller{dev: dev, opts: opts, logger: opts.Logger, clock: opts.Clock}
}

// Running reports whether a sequence started by this controller is still being polled.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Acquire arms a single sequence and blocks until the device finishes it, timeout passes
// or ctx is done. A timeout of zero or less waits indefinitely. The stop-after mode is
// restored on every path; the run state is restored when an error is returned.
func (c *Controller) Acquire(ctx context.Context, timeout time.Duration) (status Status, err error) {
	if !c.busy.CompareAndSwap(false, true) {
		return StatusIncomplete, ErrAcquisitionInProgress
	}
	defer c.busy.Store(false)
	start := c.clock.Now()

	// the event enable registers are restored on every path
	enables := []string{"DESE", "*ESE", "*SRE"}
	saved := make([]int, len(enables))
	for i, reg := range enables {
		if saved[i], err = c.dev.QueryInt(ctx, reg+"?"); err != nil {
			return StatusIncomplete, err
		}
	}
	defer func() {
		restoreCtx := context.WithoutCancel(ctx)
		for i, reg := range enables {
			err = multierr.Combine(err, c.dev.Write(restoreCtx, fmt.Sprintf("%s %d", reg, saved[i])))
		}
	}()

	// operation complete raises the event summary bit; command and execution errors are flagged
	for _, cmd := range []string{
		fmt.Sprintf("DESE %d", instrument.ESROperationComplete|instrument.ESRExecutionError|instrument.ESRCommandError),
		fmt.Sprintf("*ESE %d", instrument.ESROperationComplete|instrument.ESRExecutionError|instrument.ESRCommandError),
		fmt.Sprintf("*SRE %d", instrument.STBEventSummary),
		"*CLS",
	} {
		if err := c.dev.Write(ctx, cmd); err != nil {
			return StatusIncomplete, err
		}
	}
	runState, err := c.dev.Query(ctx, "ACQUIRE:STATE?")
	if err != nil {
		return StatusIncomplete, err
	}
	stopAfter, err := c.dev.Query(ctx, "ACQUIRE:STOPAFTER?")
	if err != nil {
		return StatusIncomplete, err
	}
	defer func() {
		restoreCtx := context.WithoutCancel(ctx)
		rerr := c.dev.Write(restoreCtx, "ACQUIRE:STOPAFTER "+stopAfter)
		if err != nil {
			rerr = multierr.Combine(rerr, c.dev.Write(restoreCtx, "ACQUIRE:STATE "+runState))
		}
		err = multierr.Combine(err, rerr)
	}()
	if err := c.dev.Write(ctx, "ACQUIRE:STOPAFTER SEQUENCE"); err != nil {
		return StatusIncomplete, err
	}

	var cancel context.CancelFunc
	deadlineCtx := ctx
	if timeout > 0 {
		deadlineCtx, cancel = c.clock.WithTimeout(ctx, timeout)
	} else {
		deadlineCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if err := c.dev.Write(deadlineCtx, "ACQUIRE:STATE RUN"); err != nil {
		return StatusIncomplete, c.classify(ctx, deadlineCtx, err)
	}
	if err := c.dev.Write(deadlineCtx, "*OPC"); err != nil {
		return StatusIncomplete, c.classify(ctx, deadlineCtx, err)
	}

	c.running.Store(true)
	defer c.running.Store(false)

	g, gctx := errgroup.WithContext(deadlineCtx)
	pollDone := make(chan struct{})
	g.Go(func() error {
		defer close(pollDone)
		defer c.running.Store(false)
		var perr error
		status, perr = c.poll(gctx)
		return perr
	})
	g.Go(func() error {
		c.feedback(gctx, pollDone, start)
		return nil
	})
	if err := g.Wait(); err != nil {
		err = c.classify(ctx, deadlineCtx, err)
		c.logger.Debugw("acquisition aborted", "err", err, "elapsed", c.clock.Since(start))
		return StatusIncomplete, err
	}
	c.logger.Debugw("acquisition finished", "status", status, "elapsed", c.clock.Since(start))
	return status, nil
}

// classify maps an error from inside the deadline scope to the error returned to callers.
func (c *Controller) classify(parent, deadlineCtx context.Context, err error) error {
	if parent.Err() == nil && errors.Is(deadlineCtx.Err(), context.DeadlineExceeded) {
		return ErrAcquisitionTimeout
	}
	if errors.Is(err, transport.ErrTimeout) {
		return errors.WithMessage(ErrCommunicationTimeout, err.Error())
	}
	return err
}

// poll reads the status byte every PollInterval until the event summary bit is set.
func (c *Controller) poll(ctx context.Context) (Status, error) {
	for {
		stb, err := c.dev.ReadStatusByte(ctx)
		if err != nil {
			return StatusIncomplete, err
		}
		if stb&instrument.STBEventSummary != 0 {
			esr, err := c.dev.QueryInt(ctx, "*ESR?")
			if err != nil {
				return StatusIncomplete, err
			}
			if esr&instrument.ESROperationComplete != 0 {
				return StatusComplete, nil
			}
			c.logger.Warnw("acquisition finished without operation complete", "esr", esr)
			return StatusIncomplete, nil
		}
		select {
		case <-ctx.Done():
			return StatusIncomplete, ctx.Err()
		case <-c.clock.After(c.opts.PollInterval):
		}
	}
}

// feedback animates the spinner until the poll finishes or ctx is done. It only reads the
// running flag.
func (c *Controller) feedback(ctx context.Context, pollDone <-chan struct{}, start time.Time) {
	var spinner Spinner
	if c.opts.Spinner != nil {
		var err error
		if spinner, err = c.opts.Spinner("Acquiring"); err != nil {
			c.logger.Debugw("progress indicator unavailable", "err", err)
			spinner = nil
		}
	}
	defer func() {
		if spinner != nil {
			//nolint:errcheck
			spinner.Stop()
		}
	}()
	ticker := c.clock.Ticker(c.opts.FeedbackInterval)
	defer ticker.Stop()
	for c.running.Load() {
		if spinner != nil {
			spinner.UpdateText(fmt.Sprintf("Acquiring (%s)", c.clock.Since(start).Round(100*time.Millisecond)))
		}
		select {
		case <-ctx.Done():
			return
		case <-pollDone:
			return
		case <-ticker.C:
		}
	}
}
