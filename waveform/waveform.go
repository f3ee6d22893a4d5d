package waveform

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scale is the vertical calibration of a record: value = YZero + YMult*(raw - YOff).
type Scale struct {
	YZero float64
	YMult float64
	YOff  float64
}

// Calibrate converts raw sample levels to physical units.
func Calibrate(raw []int8, s Scale) []float64 {
	out := make([]float64, len(raw))
	for i, r := range raw {
		out[i] = float64(r)
	}
	floats.AddConst(-s.YOff, out)
	floats.Scale(s.YMult, out)
	floats.AddConst(s.YZero, out)
	return out
}

// Waveform is a calibrated record of one or more channels sharing one time axis.
type Waveform struct {
	// Channels names the rows of Y.
	Channels []string
	// Y holds one row per channel.
	Y *mat.Dense
	// Dt is the sample interval in XUnit.
	Dt float64
	// T0 is the absolute time of the first sample.
	T0 time.Time
	// StartOffset is the time of the first sample relative to the trigger.
	StartOffset float64
	XUnit       string
	YUnit       string
	// YPosition is the vertical position in YUnit (YOFF*YMULT).
	YPosition float64
	// YOffset is the vertical offset in YUnit (YZERO).
	YOffset float64
}

// New stacks equal-length rows into a waveform.
func New(channels []string, rows [][]float64) (*Waveform, error) {
	if len(rows) == 0 || len(rows) != len(channels) {
		return nil, errors.Errorf("%d rows for %d channels", len(rows), len(channels))
	}
	n := len(rows[0])
	if n == 0 {
		return nil, errors.New("empty record")
	}
	data := make([]float64, 0, n*len(rows))
	for i, row := range rows {
		if len(row) != n {
			return nil, errors.Errorf("%s has %d samples, %s has %d", channels[i], len(row), channels[0], n)
		}
		data = append(data, row...)
	}
	return &Waveform{Channels: channels, Y: mat.NewDense(len(rows), n, data)}, nil
}

// Len returns the number of samples per channel.
func (w *Waveform) Len() int {
	_, c := w.Y.Dims()
	return c
}

// Channel returns a copy of the samples of row i.
func (w *Waveform) Channel(i int) []float64 {
	return mat.Row(nil, i, w.Y)
}

// Samples returns the samples of a single channel waveform, or of the first channel.
func (w *Waveform) Samples() []float64 {
	return w.Channel(0)
}

// Matrix returns the bare channel stack.
func (w *Waveform) Matrix() *mat.Dense {
	return w.Y
}

// Time returns the absolute time of sample i.
func (w *Waveform) Time(i int) time.Time {
	return w.T0.Add(time.Duration(math.Round(float64(i) * w.Dt * float64(time.Second))))
}

// EncodeCSV writes one row per sample: the time relative to the trigger, then each channel.
func (w *Waveform) EncodeCSV(out io.Writer) error {
	bw := bufio.NewWriter(out)
	cw := csv.NewWriter(bw)
	labels := append([]string{"time (" + w.XUnit + ")"}, w.Channels...)
	if err := cw.Write(labels); err != nil {
		return err
	}
	rows, cols := w.Y.Dims()
	record := make([]string, rows+1)
	for i := 0; i < cols; i++ {
		record[0] = strconv.FormatFloat(w.StartOffset+float64(i)*w.Dt, 'G', -1, 64)
		for j := 0; j < rows; j++ {
			record[j+1] = strconv.FormatFloat(w.Y.At(j, i), 'G', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// RFUnit describes a logarithmic vertical unit reported by RF:UNITS?.
type RFUnit struct {
	Label     string
	Scale     float64
	Reference float64
}

var rfUnitPattern = regexp.MustCompile(`^DB(M|U)(A|V|W)?$`)

// ParseRFUnit decodes units such as DBM, DBMW, DBUV or DBUA.
func ParseRFUnit(unit string) (RFUnit, error) {
	m := rfUnitPattern.FindStringSubmatch(unit)
	if m == nil {
		return RFUnit{}, &ValidationError{Input: unit, Reason: "not a logarithmic RF unit"}
	}
	u := RFUnit{Scale: 10, Reference: 1e-3, Label: "dBm"}
	if m[1] == "U" {
		u.Reference = 1e-6
		u.Label = "dBµ"
	}
	base := m[2]
	if base == "" {
		base = "W"
	}
	if base != "W" {
		u.Scale = 20
	}
	u.Label += base
	return u, nil
}

// LogScale converts linear power samples to u.Scale*log10(p/u.Reference).
func LogScale(watts []float32, u RFUnit) []float64 {
	out := make([]float64, len(watts))
	for i, p := range watts {
		out[i] = u.Scale * math.Log10(float64(p)/u.Reference)
	}
	return out
}

// Linear widens float32 samples.
func Linear(watts []float32) []float64 {
	out := make([]float64, len(watts))
	for i, p := range watts {
		out[i] = float64(p)
	}
	return out
}
