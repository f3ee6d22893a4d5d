package instrument

import (
	"context"
	"strings"
)

// Features is the model configuration read once at connect time.
type Features struct {
	AnalogChannels  int
	DigitalChannels int
	Measurements    int
	RFChannels      int

	AdvancedMath bool
	AFG          bool
	Power        bool
	Arb          bool
	AuxIn        bool
	DVM          bool
	I2C          bool

	// FullBandwidth is the analog bandwidth with the bandwidth limit off, e.g. "300 MHz".
	// Only TDS3000 models report it.
	FullBandwidth string
}

// Map returns the features keyed by their CONFIGURATION header.
func (f Features) Map() map[string]interface{} {
	m := map[string]interface{}{
		"ANALOG:NUMCHANNELS":  f.AnalogChannels,
		"DIGITAL:NUMCHANNELS": f.DigitalChannels,
		"NUMMEAS":             f.Measurements,
		"RF:NUMCHANNELS":      f.RFChannels,
		"ADVMATH":             f.AdvancedMath,
		"AFG":                 f.AFG,
		"APPLICATIONS:POWER":  f.Power,
		"ARB":                 f.Arb,
		"AUXIN":               f.AuxIn,
		"DVM":                 f.DVM,
		"BUSWAVEFORMS:I2C":    f.I2C,
	}
	if f.FullBandwidth != "" {
		m["FULL_BANDWIDTH"] = f.FullBandwidth
	}
	return m
}

type boolFeature struct {
	key string
	dst func(*Features) *bool
}

type intFeature struct {
	key string
	dst func(*Features) *int
}

var (
	commonBoolFeatures = []boolFeature{
		{"ADVMATH", func(f *Features) *bool { return &f.AdvancedMath }},
		{"AFG", func(f *Features) *bool { return &f.AFG }},
		{"APPLICATIONS:POWER", func(f *Features) *bool { return &f.Power }},
		{"ARB", func(f *Features) *bool { return &f.Arb }},
		{"AUXIN", func(f *Features) *bool { return &f.AuxIn }},
	}
	commonIntFeatures = []intFeature{
		{"ANALOG:NUMCHANNELS", func(f *Features) *int { return &f.AnalogChannels }},
		{"DIGITAL:NUMCHANNELS", func(f *Features) *int { return &f.DigitalChannels }},
		{"NUMMEAS", func(f *Features) *int { return &f.Measurements }},
	}
)

func (in *Instrument) queryFeatures(ctx context.Context) (Features, error) {
	var f Features
	var bools []boolFeature
	ints := commonIntFeatures
	switch in.family {
	case TDS3000:
		// no CONFIGURATION subsystem; everything is encoded in the model number
		m := tds3000Model.FindStringSubmatch(in.idn.Model)
		f.AnalogChannels = int(m[2][0] - '0')
		f.FullBandwidth = m[1] + "00 MHz"
		f.Measurements = 4
		return f, nil
	case MDO3000:
		bools = append(append(bools, commonBoolFeatures...),
			boolFeature{"DVM", func(f *Features) *bool { return &f.DVM }})
		ints = append(append([]intFeature(nil), ints...),
			intFeature{"RF:NUMCHANNELS", func(f *Features) *int { return &f.RFChannels }})
	case MSO4000B, MSO4000:
		// DPO models have no option features to report
		if prefix := in.idn.Model[:3]; strings.EqualFold(prefix, "MSO") || strings.EqualFold(prefix, "MDO") {
			bools = append(append(bools, commonBoolFeatures...),
				boolFeature{"BUSWAVEFORMS:I2C", func(f *Features) *bool { return &f.I2C }})
		}
	}
	for _, b := range bools {
		v, err := in.QueryBool(ctx, "CONFIGURATION:"+b.key+"?")
		if err != nil {
			return Features{}, err
		}
		*b.dst(&f) = v
	}
	for _, i := range ints {
		v, err := in.QueryInt(ctx, "CONFIGURATION:"+i.key+"?")
		if err != nil {
			return Features{}, err
		}
		*i.dst(&f) = v
	}
	return f, nil
}
