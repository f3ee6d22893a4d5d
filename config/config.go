// Package config reads the YAML file naming the instruments the command line tools talk to.
package config

import (
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/neilo40/tek_remote/acquire"
	"github.com/neilo40/tek_remote/internal/logging"
	"github.com/neilo40/tek_remote/transport"
)

// Config lists named instruments.
type Config struct {
	// Default is the instrument used when none is named.
	Default     string                      `yaml:"default"`
	Instruments map[string]InstrumentConfig `yaml:"instruments"`
}

// InstrumentConfig is one entry as written in the file. Durations are Go duration strings
// such as "4s" or "500ms"; empty means the library default.
type InstrumentConfig struct {
	Resource         string `yaml:"resource"`
	Timeout          string `yaml:"timeout"`
	BaudRate         int    `yaml:"baud_rate"`
	PollInterval     string `yaml:"poll_interval"`
	FeedbackInterval string `yaml:"feedback_interval"`
	// ReadTimeout bounds a fresh acquisition; empty waits indefinitely.
	ReadTimeout string `yaml:"read_timeout"`
}

// Instrument is a resolved entry.
type Instrument struct {
	Name             string
	Resource         string
	Timeout          time.Duration
	BaudRate         int
	PollInterval     time.Duration
	FeedbackInterval time.Duration
	ReadTimeout      time.Duration
}

// Default returns a configuration with a single simulated MDO3024.
func Default() *Config {
	return &Config{
		Default: "sim",
		Instruments: map[string]InstrumentConfig{
			"sim": {Resource: "SIM::MDO3024", PollInterval: "100ms", FeedbackInterval: "100ms"},
		},
	}
}

// Load reads a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	if len(c.Instruments) == 0 {
		return nil, errors.Errorf("config %s lists no instruments", path)
	}
	if c.Default == "" && len(c.Instruments) == 1 {
		for name := range c.Instruments {
			c.Default = name
		}
	}
	return &c, nil
}

// Names returns the instrument names in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Instruments))
	for name := range c.Instruments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instrument resolves the named entry, or the default one if name is empty.
func (c *Config) Instrument(name string) (Instrument, error) {
	if name == "" {
		name = c.Default
	}
	ic, ok := c.Instruments[name]
	if !ok {
		return Instrument{}, errors.Errorf("no instrument %q in config", name)
	}
	if ic.Resource == "" {
		return Instrument{}, errors.Errorf("instrument %q has no resource", name)
	}
	in := Instrument{Name: name, Resource: ic.Resource, BaudRate: ic.BaudRate}
	for _, d := range []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"timeout", ic.Timeout, &in.Timeout},
		{"poll_interval", ic.PollInterval, &in.PollInterval},
		{"feedback_interval", ic.FeedbackInterval, &in.FeedbackInterval},
		{"read_timeout", ic.ReadTimeout, &in.ReadTimeout},
	} {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return Instrument{}, errors.Wrapf(err, "instrument %q %s", name, d.key)
		}
		*d.dst = v
	}
	return in, nil
}

// TransportOptions returns the options for opening the instrument's resource.
func (in Instrument) TransportOptions(logger logging.Logger) transport.Options {
	return transport.Options{Timeout: in.Timeout, BaudRate: in.BaudRate, Logger: logger}
}

// AcquireOptions returns the acquisition controller options for the instrument.
func (in Instrument) AcquireOptions(logger logging.Logger) acquire.Options {
	return acquire.Options{
		PollInterval:     in.PollInterval,
		FeedbackInterval: in.FeedbackInterval,
		Logger:           logger,
	}
}
