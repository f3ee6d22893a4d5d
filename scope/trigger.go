package scope

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/neilo40/tek_remote/instrument"
	"github.com/neilo40/tek_remote/waveform"
)

// TriggerKind is the trigger type of the A trigger.
type TriggerKind int

// Trigger kinds.
const (
	TriggerEdge TriggerKind = iota
	TriggerLogic
	TriggerPulse
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerEdge:
		return "EDGE"
	case TriggerLogic:
		return "LOGIC"
	case TriggerPulse:
		return "PULSE"
	}
	return fmt.Sprintf("TriggerKind(%d)", int(k))
}

// ParseTriggerKind parses EDGE, LOGIC or PULSE in any case.
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EDGE":
		return TriggerEdge, nil
	case "LOGIC":
		return TriggerLogic, nil
	case "PULSE":
		return TriggerPulse, nil
	}
	return 0, &waveform.ValidationError{Input: s, Reason: "trigger kind must be EDGE, LOGIC or PULSE"}
}

// EdgeTrigger is the configuration of an edge trigger.
type EdgeTrigger struct {
	Coupling string
	Slope    string
	Source   string
}

// LogicTrigger is the configuration of a logic trigger.
type LogicTrigger struct {
	Function string
	Class    string
}

// PulseTrigger is the configuration of a pulse width trigger.
type PulseTrigger struct {
	Class    string
	Width    float64
	When     string
	Polarity string
}

// TriggerSettings holds the configuration of the active trigger kind. Exactly one of Edge,
// Logic and Pulse is set, matching Kind.
type TriggerSettings struct {
	Kind  TriggerKind
	Edge  *EdgeTrigger
	Logic *LogicTrigger
	Pulse *PulseTrigger
}

// Trigger is the A (main) or B (delayed) trigger.
type Trigger struct {
	in          *instrument.Instrument
	family      instrument.Family
	designation string
}

func (tr *Trigger) header(field string) string {
	return fmt.Sprintf("TRIGGER:%s:%s", tr.designation, field)
}

func (tr *Trigger) onlyA(what string) error {
	if tr.designation != "A" {
		return notSupported(tr.in.IDN().Model, "B trigger "+what)
	}
	return nil
}

func (tr *Trigger) onlyB(what string) error {
	if tr.designation != "B" {
		return errors.Errorf("%s applies to the B trigger only", what)
	}
	return nil
}

// Kind returns the trigger type.
func (tr *Trigger) Kind(ctx context.Context) (TriggerKind, error) {
	if err := tr.onlyA("type"); err != nil {
		return 0, err
	}
	v, err := tr.in.Query(ctx, tr.header("TYPE")+"?")
	if err != nil {
		return 0, err
	}
	return ParseTriggerKind(v)
}

func (tr *Trigger) SetKind(ctx context.Context, k TriggerKind) error {
	if err := tr.onlyA("type"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %s", tr.header("TYPE"), k)
}

// Mode returns AUTO or NORMAL.
func (tr *Trigger) Mode(ctx context.Context) (string, error) {
	if err := tr.onlyA("mode"); err != nil {
		return "", err
	}
	return tr.in.Query(ctx, tr.header("MODE")+"?")
}

func (tr *Trigger) SetMode(ctx context.Context, mode string) error {
	if err := tr.onlyA("mode"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %s", tr.header("MODE"), strings.ToUpper(mode))
}

// Level returns the trigger level in the units of the trigger source.
func (tr *Trigger) Level(ctx context.Context) (float64, error) {
	return tr.in.QueryFloat(ctx, tr.header("LEVEL")+"?")
}

func (tr *Trigger) SetLevel(ctx context.Context, v float64) error {
	return tr.in.Setf(ctx, "%s %g", tr.header("LEVEL"), v)
}

// SetLevel50 sets the level to the midpoint between the peaks of the trigger source.
func (tr *Trigger) SetLevel50(ctx context.Context) error {
	return tr.in.Set(ctx, tr.header("SETLEVEL"))
}

// Holdoff returns the holdoff time in seconds.
func (tr *Trigger) Holdoff(ctx context.Context) (float64, error) {
	if err := tr.onlyA("holdoff"); err != nil {
		return 0, err
	}
	return tr.in.QueryFloat(ctx, tr.header("HOLDOFF:TIME")+"?")
}

func (tr *Trigger) SetHoldoff(ctx context.Context, seconds float64) error {
	if err := tr.onlyA("holdoff"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %g", tr.header("HOLDOFF:TIME"), seconds)
}

// Parameters returns every setting of the trigger, keyed by its header below the trigger
// node, e.g. EDGE:SLOPE.
func (tr *Trigger) Parameters(ctx context.Context) (waveform.Preamble, error) {
	node := "TRIGGER:" + tr.designation
	var raw string
	err := tr.in.WithHeader(ctx, func(ctx context.Context) error {
		var err error
		raw, err = tr.in.Query(ctx, node+"?")
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "reading trigger parameters")
	}
	return waveform.ParsePreamble(raw, ":"+node+":"), nil
}

// Settings returns the configuration of the active trigger kind.
func (tr *Trigger) Settings(ctx context.Context) (TriggerSettings, error) {
	kind, err := tr.Kind(ctx)
	if err != nil {
		return TriggerSettings{}, err
	}
	p, err := tr.Parameters(ctx)
	if err != nil {
		return TriggerSettings{}, err
	}
	s := TriggerSettings{Kind: kind}
	switch kind {
	case TriggerEdge:
		s.Edge = &EdgeTrigger{
			Coupling: p.String("EDGE:COUPLING"),
			Slope:    p.String("EDGE:SLOPE"),
			Source:   p.String("EDGE:SOURCE"),
		}
	case TriggerLogic:
		s.Logic = &LogicTrigger{
			Function: p.String("LOGIC:FUNCTION"),
			Class:    p.String("LOGIC:CLASS"),
		}
	case TriggerPulse:
		width, err := p.Float("PULSE:WIDTH:WIDTH")
		if err != nil {
			return TriggerSettings{}, err
		}
		s.Pulse = &PulseTrigger{
			Class:    p.String("PULSE:CLASS"),
			Width:    width,
			When:     p.String("PULSE:WIDTH:WHEN"),
			Polarity: p.String("PULSE:WIDTH:POLARITY"),
		}
	}
	return s, nil
}

// EdgeSource returns the edge trigger source, e.g. CH1 or LINE.
func (tr *Trigger) EdgeSource(ctx context.Context) (string, error) {
	return tr.in.Query(ctx, tr.header("EDGE:SOURCE")+"?")
}

func (tr *Trigger) SetEdgeSource(ctx context.Context, source string) error {
	return tr.in.Setf(ctx, "%s %s", tr.header("EDGE:SOURCE"), strings.ToUpper(source))
}

// EdgeSlope returns RISE, FALL or EITHER.
func (tr *Trigger) EdgeSlope(ctx context.Context) (string, error) {
	return tr.in.Query(ctx, tr.header("EDGE:SLOPE")+"?")
}

func (tr *Trigger) SetEdgeSlope(ctx context.Context, slope string) error {
	return tr.in.Setf(ctx, "%s %s", tr.header("EDGE:SLOPE"), strings.ToUpper(slope))
}

// EdgeCoupling returns AC, DC, HFREJ, LFREJ or NOISEREJ.
func (tr *Trigger) EdgeCoupling(ctx context.Context) (string, error) {
	return tr.in.Query(ctx, tr.header("EDGE:COUPLING")+"?")
}

func (tr *Trigger) SetEdgeCoupling(ctx context.Context, coupling string) error {
	return tr.in.Setf(ctx, "%s %s", tr.header("EDGE:COUPLING"), strings.ToUpper(coupling))
}

// State reports whether the B trigger is enabled.
func (tr *Trigger) State(ctx context.Context) (bool, error) {
	if err := tr.onlyB("state"); err != nil {
		return false, err
	}
	return tr.in.QueryBool(ctx, tr.header("STATE")+"?")
}

func (tr *Trigger) SetState(ctx context.Context, on bool) error {
	if err := tr.onlyB("state"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %s", tr.header("STATE"), onOff(on))
}

// By returns whether the B trigger arms after a time (TIME) or a number of events (EVENTS).
func (tr *Trigger) By(ctx context.Context) (string, error) {
	if err := tr.onlyB("by"); err != nil {
		return "", err
	}
	return tr.in.Query(ctx, tr.header("BY")+"?")
}

func (tr *Trigger) SetBy(ctx context.Context, by string) error {
	if err := tr.onlyB("by"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %s", tr.header("BY"), strings.ToUpper(by))
}

// Time returns the B trigger delay in seconds.
func (tr *Trigger) Time(ctx context.Context) (float64, error) {
	if err := tr.onlyB("time"); err != nil {
		return 0, err
	}
	return tr.in.QueryFloat(ctx, tr.header("TIME")+"?")
}

func (tr *Trigger) SetTime(ctx context.Context, seconds float64) error {
	if err := tr.onlyB("time"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %g", tr.header("TIME"), seconds)
}

// Events returns the number of B trigger events counted before triggering.
func (tr *Trigger) Events(ctx context.Context) (int, error) {
	if err := tr.onlyB("events"); err != nil {
		return 0, err
	}
	return tr.in.QueryInt(ctx, tr.header("EVENTS:COUNT")+"?")
}

func (tr *Trigger) SetEvents(ctx context.Context, n int) error {
	if err := tr.onlyB("events"); err != nil {
		return err
	}
	return tr.in.Setf(ctx, "%s %d", tr.header("EVENTS:COUNT"), n)
}
