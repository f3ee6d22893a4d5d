// Package sim implements a scripted Tektronix oscilloscope that answers the same command set
// as the hardware. It is registered as the SIM transport kind so that SIM::MDO3024 style
// resources can be opened anywhere a real instrument can.
package sim

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/neilo40/tek_remote/transport"
)

// Status register bits.
const (
	esrOPC = 1
	esrEXE = 16
	esrCME = 32
	stbMAV = 16
	stbESB = 32
	stbMSS = 64
)

func init() {
	transport.Register("SIM", func(ctx context.Context, res transport.Resource, opts transport.Options) (transport.Transport, error) {
		return New(res.Address)
	})
}

// Channel describes the stored record and scaling of one source.
type Channel struct {
	Raw   []int8
	YZero float64
	YMult float64
	YOff  float64
	XIncr float64
	XZero float64
	XUnit string
	YUnit string
}

type event struct {
	code int
	msg  string
}

// Simulator is an in-memory oscilloscope. The exported fields may be changed between calls
// to script the behavior of the next acquisition.
type Simulator struct {
	mu sync.Mutex

	// CompleteAfterPolls is the number of status reads after which a single sequence
	// finishes. A negative value means the sequence never finishes.
	CompleteAfterPolls int
	// CompleteWithoutOPC finishes the sequence with an execution error instead of
	// operation complete.
	CompleteWithoutOPC bool
	// StatusFunc replaces the status byte read.
	StatusFunc func(ctx context.Context) (byte, error)

	clk      clock.Clock
	idn      string
	offset   time.Duration
	settings map[string]string
	channels map[string]Channel
	rf       []float32
	rfPre    Channel
	listing  []string
	rejects  map[string]string
	failures map[string]error
	events   []event
	header   bool
	dese     int
	ese      int
	sre      int
	esr      int
	running  bool
	opcArmed bool
	polls    int
	preamble string
	log      []string
	closed   bool
}

var (
	mdoPattern = regexp.MustCompile(`^MDO3\d(\d)(\d)$`)
	msoPattern = regexp.MustCompile(`^(MSO|DPO|MDO)4\d\d(\d)`)
	tdsPattern = regexp.MustCompile(`^TDS30\d([24])[BC]*$`)
)

// New returns a simulator that identifies itself as the given model.
func New(model string) (*Simulator, error) {
	return NewWithClock(model, clock.New())
}

// NewWithClock returns a simulator whose TIME? and DATE? answers follow clk.
func NewWithClock(model string, clk clock.Clock) (*Simulator, error) {
	model = strings.ToUpper(strings.TrimSpace(model))
	if model == "" {
		model = "MDO3024"
	}
	s := &Simulator{
		clk:      clk,
		idn:      fmt.Sprintf("TEKTRONIX,%s,SIM00001,CF:91.1CT FV:v1.30", model),
		settings: map[string]string{},
		channels: map[string]Channel{},
		rejects:  map[string]string{},
		failures: map[string]error{},
		dese:     255,
		listing:  []string{"tek0000.png", "data"},
		preamble: "WFMOUTPRE",
	}
	nChannels, rf, dvm := 4, 0, 0
	switch {
	case mdoPattern.MatchString(model):
		nChannels = int(model[len(model)-1] - '0')
		rf, dvm = 1, 1
	case msoPattern.MatchString(model):
		nChannels = 4
	case tdsPattern.MatchString(model):
		nChannels = int(tdsPattern.FindStringSubmatch(model)[1][0] - '0')
		s.preamble = "WFMPRE"
	}
	s.defaults(nChannels, rf, dvm)
	return s, nil
}

func (s *Simulator) defaults(nChannels, rf, dvm int) {
	set := func(kv ...string) {
		for i := 0; i+1 < len(kv); i += 2 {
			s.settings[kv[i]] = kv[i+1]
		}
	}
	set(
		"ACQUIRE:STOPAFTER", "RUNSTOP",
		"ACQUIRE:STATE", "1",
		"ACQUIRE:MODE", "SAMPLE",
		"ACQUIRE:NUMACQ", "0",
		"ACQUIRE:NUMAVG", "16",
		"ACQUIRE:NUMENV", "INFINITE",
		"HORIZONTAL:RECORDLENGTH", "10000",
		"HORIZONTAL:SCALE", "4.0E-6",
		"HORIZONTAL:SAMPLERATE", "2.5E9",
		"HORIZONTAL:DELAY:MODE", "0",
		"HORIZONTAL:DELAY:STATE", "0",
		"HORIZONTAL:DELAY:TIME", "0.0E+0",
		"HORIZONTAL:POSITION", "50",
		"HORIZONTAL:TRIGGER:POSITION", "50",
		"DATA:SOURCE", "CH1",
		"DATA:START", "1",
		"DATA:STOP", "10000",
		"DATA:WIDTH", "1",
		"DATA:ENCDG", "RIBINARY",
		"TRIGGER:STATE", "AUTO",
		"TRIGGER:A:TYPE", "EDGE",
		"TRIGGER:A:MODE", "AUTO",
		"TRIGGER:A:LEVEL", "0.0E+0",
		"TRIGGER:A:HOLDOFF:TIME", "2.0E-8",
		"TRIGGER:A:EDGE:COUPLING", "DC",
		"TRIGGER:A:EDGE:SLOPE", "RISE",
		"TRIGGER:A:EDGE:SOURCE", "CH1",
		"TRIGGER:A:LOGIC:FUNCTION", "AND",
		"TRIGGER:A:LOGIC:CLASS", "PATTERN",
		"TRIGGER:A:PULSE:CLASS", "WIDTH",
		"TRIGGER:A:PULSE:WIDTH:WIDTH", "8.0E-9",
		"TRIGGER:A:PULSE:WIDTH:WHEN", "LESSTHAN",
		"TRIGGER:A:PULSE:WIDTH:POLARITY", "POSITIVE",
		"TRIGGER:B:STATE", "0",
		"TRIGGER:B:BY", "TIME",
		"TRIGGER:B:TIME", "1.6E-8",
		"TRIGGER:B:EVENTS:COUNT", "2",
		"CONFIGURATION:ADVMATH", "1",
		"CONFIGURATION:AFG", "0",
		"CONFIGURATION:APPLICATIONS:POWER", "0",
		"CONFIGURATION:ARB", "0",
		"CONFIGURATION:AUXIN", "1",
		"CONFIGURATION:BUSWAVEFORMS:I2C", "0",
		"CONFIGURATION:DVM", strconv.Itoa(dvm),
		"CONFIGURATION:ANALOG:NUMCHANNELS", strconv.Itoa(nChannels),
		"CONFIGURATION:DIGITAL:NUMCHANNELS", "0",
		"CONFIGURATION:NUMMEAS", "4",
		"CONFIGURATION:RF:NUMCHANNELS", strconv.Itoa(rf),
		"DVM:MODE", "DC",
		"DVM:SOURCE", "CH1",
		"DVM:MEASUREMENT:VALUE", "1.25",
		"DVM:MEASUREMENT:HISTORY:MINIMUM", "1.2",
		"DVM:MEASUREMENT:HISTORY:MAXIMUM", "1.3",
		"DVM:MEASUREMENT:HISTORY:AVERAGE", "1.25",
		"DVM:MEASUREMENT:FREQUENCY", "1.0E+3",
		"RF:FREQUENCY", "1.0E+9",
		"RF:SPAN", "1.0E+6",
		"RF:RBW:MODE", "AUTO",
		"RF:RBW", "1.0E+3",
		"RF:SPANRBWRATIO", "1000",
		"RF:REFLEVEL", "0.0E+0",
		"RF:POSITION", "0.0E+0",
		"RF:SCALE", "10",
		"RF:UNITS", "DBM",
		"RF:WINDOW", "KAISER",
		"RF:LABEL", `""`,
		"RF:CLIPPING", "0",
		"SELECT:CONTROL", "CH1",
		"FILESYSTEM:CWD", `"E:/"`,
		"POWER:BATTERY:GASGAUGE", "12",
		"LOCK", "NONE",
		"MESSAGE:STATE", "0",
	)
	for ch := 1; ch <= nChannels; ch++ {
		p := fmt.Sprintf("CH%d:", ch)
		set(
			p+"BANDWIDTH", "FULL",
			p+"COUPLING", "DC",
			p+"INVERT", "0",
			p+"OFFSET", "0.0E+0",
			p+"POSITION", "0.0E+0",
			p+"SCALE", "1.0",
			p+"YUNITS", `"V"`,
			p+"LABEL", `""`,
			p+"TERMINATION", "1.0E+6",
			p+"PROBE", "1.0",
			p+"PROBE:ID:TYPE", `"1X"`,
			p+"PROBE:MODEL", `"TPP0250"`,
			p+"PROBE:GAIN", "0.1",
			p+"PROBE:RESISTANCE", "1.0E+7",
			p+"IMPEDANCE", "MEG",
			"SELECT:"+p[:len(p)-1], lo.Ternary(ch == 1, "1", "0"),
		)
		s.channels[p[:len(p)-1]] = Channel{YMult: 0.04, XIncr: 4e-10, XZero: -2e-6, XUnit: "s", YUnit: "V"}
	}
	if rf > 0 {
		set("SELECT:RF_NORMAL", "0", "SELECT:RF_AVERAGE", "0", "SELECT:RF_MAXHOLD", "0", "SELECT:RF_MINHOLD", "0")
		s.rfPre = Channel{XIncr: 1e3, XZero: 9.995e8, XUnit: "Hz", YUnit: "W"}
	}
	for slot := 1; slot <= 4; slot++ {
		p := fmt.Sprintf("MEASUREMENT:MEAS%d:", slot)
		set(
			p+"STATE", "0",
			p+"SOURCE", "CH1",
			p+"TYPE", "FREQUENCY",
			p+"VALUE", "9.9E37",
			p+"MINIMUM", "9.9E37",
			p+"MAXIMUM", "9.9E37",
			p+"MEAN", "9.9E37",
			p+"STDDEV", "9.9E37",
			p+"UNITS", `"Hz"`,
		)
	}
}

// SetChannel installs the record and scaling returned for source (CH1, CH2, ...).
func (s *Simulator) SetChannel(source string, ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[strings.ToUpper(source)] = ch
	s.settings["HORIZONTAL:RECORDLENGTH"] = strconv.Itoa(len(ch.Raw))
}

// SetRF installs the linear power trace (watts) and its frequency axis.
func (s *Simulator) SetRF(watts []float32, pre Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rf = watts
	s.rfPre = pre
}

// Set overrides the value the device reports for a header.
func (s *Simulator) Set(header, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[strings.ToUpper(header)] = value
}

// Setting returns the stored value of a header.
func (s *Simulator) Setting(header string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[strings.ToUpper(header)]
}

// Reject makes every later write of header raise a command error with msg.
func (s *Simulator) Reject(header, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[strings.ToUpper(header)] = msg
}

// FailOn makes every later command with the given header fail with err.
func (s *Simulator) FailOn(header string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToUpper(header)] = err
}

// Commands returns the commands received so far.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

// ResetLog forgets the received commands.
func (s *Simulator) ResetLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// Running reports whether a single sequence is armed and not finished.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// DESE returns the device event status enable register.
func (s *Simulator) DESE() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dese
}

// Listing returns the simulated directory listing.
func (s *Simulator) Listing() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.listing...)
}

// Close marks the simulator closed; later commands fail.
func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func split(cmd string) (string, string) {
	cmd = strings.TrimSpace(cmd)
	header, arg, _ := strings.Cut(cmd, " ")
	return strings.ToUpper(header), strings.TrimSpace(arg)
}

func (s *Simulator) check(ctx context.Context, cmd string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return errors.New("simulator closed")
	}
	s.log = append(s.log, cmd)
	header, _ := split(cmd)
	if err, ok := s.failures[strings.TrimSuffix(header, "?")]; ok {
		return err
	}
	return nil
}

func (s *Simulator) raise(bit int, code int, msg string) {
	if s.dese&bit != 0 {
		s.esr |= bit
	}
	s.events = append(s.events, event{code: code, msg: msg})
}

func (s *Simulator) deviceTime() time.Time {
	return s.clk.Now().Add(s.offset)
}

func boolValue(v string) string {
	switch strings.ToUpper(v) {
	case "ON", "1", "RUN":
		return "1"
	case "OFF", "0", "STOP":
		return "0"
	}
	return v
}

func isBoolHeader(h string) bool {
	return strings.HasPrefix(h, "SELECT:CH") || strings.HasPrefix(h, "SELECT:RF") ||
		strings.HasPrefix(h, "SELECT:MATH") || strings.HasPrefix(h, "SELECT:BUS") ||
		strings.HasSuffix(h, ":STATE") || strings.HasSuffix(h, ":INVERT") ||
		h == "HORIZONTAL:DELAY:MODE" || h == "HORIZONTAL:DELAY:STATE"
}

func quoted(v string) string {
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') {
		return `"` + v[1:len(v)-1] + `"`
	}
	return v
}

func unquote(v string) string {
	return strings.Trim(v, `"'`)
}

// Write executes a command.
func (s *Simulator) Write(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, cmd); err != nil {
		return err
	}
	header, arg := split(cmd)
	if msg, ok := s.rejects[header]; ok {
		s.raise(esrCME, 102, msg)
		return nil
	}
	atoi := func() int {
		n, err := strconv.Atoi(arg)
		if err != nil {
			s.raise(esrCME, 104, "Data type error")
		}
		return n
	}
	switch header {
	case "*CLS":
		s.esr = 0
		s.events = nil
	case "*RST":
		s.running, s.opcArmed = false, false
		s.settings["ACQUIRE:STOPAFTER"] = "RUNSTOP"
		s.settings["ACQUIRE:STATE"] = "1"
	case "*ESE":
		s.ese = atoi()
	case "*SRE":
		s.sre = atoi()
	case "DESE":
		s.dese = atoi()
	case "*OPC":
		if s.running {
			s.opcArmed = true
		} else if s.dese&esrOPC != 0 {
			s.esr |= esrOPC
		}
	case "HEADER":
		s.header = boolValue(arg) == "1"
	case "VERBOSE":
	case "ACQUIRE:STATE":
		v := boolValue(arg)
		s.settings[header] = v
		s.running = v == "1" && s.settings["ACQUIRE:STOPAFTER"] == "SEQUENCE"
		s.polls = 0
		if !s.running {
			s.opcArmed = false
		}
	case "ACQUIRE:STOPAFTER":
		v := strings.ToUpper(arg)
		if v != "SEQUENCE" && v != "RUNSTOP" {
			s.raise(esrCME, 108, "Illegal parameter value")
			return nil
		}
		s.settings[header] = v
	case "DATE":
		d, err := time.ParseInLocation("2006-01-02", unquote(arg), time.Local)
		if err != nil {
			s.raise(esrCME, 104, "Data type error")
			return nil
		}
		now := s.deviceTime()
		want := time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.Local)
		s.offset += want.Sub(now)
	case "TIME":
		t, err := time.Parse("15:04:05", unquote(arg))
		if err != nil {
			s.raise(esrCME, 104, "Data type error")
			return nil
		}
		now := s.deviceTime()
		want := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
		s.offset += want.Sub(now)
	case "FILESYSTEM:MKDIR":
		s.listing = append(s.listing, unquote(arg))
	case "TRIGGER":
		// TRIGGER FORCE
		s.settings["TRIGGER:STATE"] = "TRIGGER"
	case "LOCK":
		s.settings[header] = strings.ToUpper(arg)
	case "UNLOCK":
		s.settings["LOCK"] = "NONE"
	case "MESSAGE:CLEAR":
		delete(s.settings, "MESSAGE:SHOW")
	case "TRIGGER:A:SETLEVEL":
		s.settings["TRIGGER:A:LEVEL"] = "5.0E-1"
	default:
		if strings.HasSuffix(header, "?") {
			s.raise(esrCME, 113, "Undefined header")
			return nil
		}
		v := quoted(arg)
		if isBoolHeader(header) {
			v = boolValue(v)
		}
		s.settings[header] = v
	}
	return nil
}

func (s *Simulator) statusByte() byte {
	if s.running && s.CompleteAfterPolls >= 0 {
		s.polls++
		if s.polls >= s.CompleteAfterPolls {
			s.running = false
			s.settings["ACQUIRE:STATE"] = "0"
			if s.opcArmed {
				s.opcArmed = false
				if s.CompleteWithoutOPC {
					s.raise(esrEXE, 221, "Settings conflict")
				} else if s.dese&esrOPC != 0 {
					s.esr |= esrOPC
				}
			}
		}
	}
	var stb byte
	if s.esr&s.ese != 0 {
		stb |= stbESB
	}
	if int(stb)&s.sre != 0 {
		stb |= stbMSS
	}
	return stb
}

// ReadStatusByte returns the status byte; every read advances an armed sequence by one poll.
func (s *Simulator) ReadStatusByte(ctx context.Context) (byte, error) {
	if s.StatusFunc != nil {
		return s.StatusFunc(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "*STB?"); err != nil {
		return 0, err
	}
	return s.statusByte(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'E', -1, 64)
}

func (s *Simulator) renderPreamble(ch Channel, n int) string {
	fields := []string{
		"BYT_NR 1",
		"BIT_NR 8",
		"ENCDG BINARY",
		"BN_FMT RI",
		"BYT_OR MSB",
		fmt.Sprintf(`WFID "%s, DC coupling, 1.000V/div, 4.000us/div, %d points, Sample mode"`, s.settings["DATA:SOURCE"], n),
		fmt.Sprintf("NR_PT %d", n),
		"PT_FMT Y",
		fmt.Sprintf(`XUNIT "%s"`, ch.XUnit),
		"XINCR " + formatFloat(ch.XIncr),
		"XZERO " + formatFloat(ch.XZero),
		"PT_OFF 0",
		fmt.Sprintf(`YUNIT "%s"`, ch.YUnit),
		"YMULT " + formatFloat(ch.YMult),
		"YOFF " + formatFloat(ch.YOff),
		"YZERO " + formatFloat(ch.YZero),
	}
	if !s.header {
		for i, f := range fields {
			_, v, _ := strings.Cut(f, " ")
			fields[i] = v
		}
		return strings.Join(fields, ";")
	}
	return ":" + s.preamble + ":" + strings.Join(fields, ";")
}

func (s *Simulator) span(n int) (int, int) {
	start, _ := strconv.Atoi(s.settings["DATA:START"])
	stop, _ := strconv.Atoi(s.settings["DATA:STOP"])
	if start < 1 {
		start = 1
	}
	if stop > n {
		stop = n
	}
	if stop < start {
		return 0, 0
	}
	return start - 1, stop
}

func (s *Simulator) withHeader(header, value string) string {
	if s.header {
		return ":" + header + " " + value
	}
	return value
}

// Query executes a query and returns its answer. A query the device does not know sets the
// command error bit and never answers, which shows up as a transport timeout.
func (s *Simulator) Query(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, cmd); err != nil {
		return "", err
	}
	header, _ := split(cmd)
	key := strings.TrimSuffix(header, "?")
	switch header {
	case "*IDN?":
		return s.idn, nil
	case "*ESR?":
		v := s.esr
		s.esr = 0
		return strconv.Itoa(v), nil
	case "*STB?":
		return strconv.Itoa(int(s.statusByte())), nil
	case "*ESE?":
		return strconv.Itoa(s.ese), nil
	case "*SRE?":
		return strconv.Itoa(s.sre), nil
	case "DESE?":
		return s.withHeader("DESE", strconv.Itoa(s.dese)), nil
	case "*OPC?":
		return "1", nil
	case "HEADER?":
		return s.withHeader("HEADER", lo.Ternary(s.header, "1", "0")), nil
	case "EVMSG?":
		if len(s.events) == 0 {
			return s.withHeader("EVMSG", `0,"No events to report - queue empty"`), nil
		}
		ev := s.events[0]
		s.events = s.events[1:]
		return s.withHeader("EVMSG", fmt.Sprintf(`%d,"%s"`, ev.code, ev.msg)), nil
	case "EVENT?":
		if len(s.events) == 0 {
			return s.withHeader("EVENT", "0"), nil
		}
		ev := s.events[0]
		s.events = s.events[1:]
		return s.withHeader("EVENT", strconv.Itoa(ev.code)), nil
	case "TIME?":
		return s.withHeader("TIME", `"`+s.deviceTime().Format("15:04:05")+`"`), nil
	case "DATE?":
		return s.withHeader("DATE", `"`+s.deviceTime().Format("2006-01-02")+`"`), nil
	case "WFMOUTPRE?", "WFMPRE?":
		src := s.settings["DATA:SOURCE"]
		if src == "RF_NORMAL" {
			a, b := s.span(len(s.rf))
			return s.renderPreamble(s.rfPre, b-a), nil
		}
		ch, ok := s.channels[src]
		if !ok {
			s.raise(esrEXE, 2244, "Source waveform is not active")
			return "", errors.Wrapf(transport.ErrTimeout, "query %s", cmd)
		}
		a, b := s.span(len(ch.Raw))
		return s.renderPreamble(ch, b-a), nil
	case "FILESYSTEM?":
		q := lo.Map(s.listing, func(f string, _ int) string { return `"` + f + `"` })
		return strings.Join(q, ",") + ";1000000", nil
	}
	if v, ok := s.settings[key]; ok {
		return s.withHeader(key, v), nil
	}
	if v, ok := s.compound(key); ok {
		return v, nil
	}
	s.raise(esrCME, 113, "Undefined header")
	return "", errors.Wrapf(transport.ErrTimeout, "query %s", cmd)
}

// compound answers a query on a command tree node with all settings under it.
func (s *Simulator) compound(key string) (string, bool) {
	prefix := key + ":"
	keys := lo.Filter(lo.Keys(s.settings), func(k string, _ int) bool { return strings.HasPrefix(k, prefix) })
	if len(keys) == 0 {
		return "", false
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s.header {
			parts = append(parts, strings.TrimPrefix(k, prefix)+" "+s.settings[k])
		} else {
			parts = append(parts, s.settings[k])
		}
	}
	if s.header {
		return ":" + prefix + strings.Join(parts, ";"), true
	}
	return strings.Join(parts, ";"), true
}

// QueryBinary answers CURVE? with the stored record of the current data source.
func (s *Simulator) QueryBinary(ctx context.Context, cmd string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, cmd); err != nil {
		return nil, err
	}
	header, _ := split(cmd)
	if header != "CURVE?" {
		s.raise(esrCME, 113, "Undefined header")
		return nil, errors.Wrapf(transport.ErrTimeout, "query %s", cmd)
	}
	src := s.settings["DATA:SOURCE"]
	if src == "RF_NORMAL" {
		a, b := s.span(len(s.rf))
		out := make([]byte, 4*(b-a))
		for i, v := range s.rf[a:b] {
			binary.BigEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	}
	ch, ok := s.channels[src]
	if !ok {
		s.raise(esrEXE, 2244, "Source waveform is not active")
		return nil, errors.Wrapf(transport.ErrTimeout, "query %s", cmd)
	}
	a, b := s.span(len(ch.Raw))
	out := make([]byte, b-a)
	for i, v := range ch.Raw[a:b] {
		out[i] = byte(v)
	}
	return out, nil
}
