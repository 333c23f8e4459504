package main

import (
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	defaultTargetDir      = "."
	defaultStartIPCol     = 0
	defaultEndIPCol       = 1
	defaultCountryCodeCol = 4 // legacy maxmind/geoip layout
	defaultListen         = "localhost:12950"
)

type Config struct {
	LogLevel       string `yaml:"log_level"`
	TargetDir      string `yaml:"target_dir"`
	NativeOnly     bool   `yaml:"native_only"`
	IgnoreFirstRow bool   `yaml:"ignore_first_row"`
	StartIPCol     int    `yaml:"start_ip_col"`
	EndIPCol       int    `yaml:"end_ip_col"`
	CountryCodeCol int    `yaml:"country_code_col"`
	Listen         string `yaml:"listen"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:       logrus.InfoLevel.String(),
		TargetDir:      defaultTargetDir,
		StartIPCol:     defaultStartIPCol,
		EndIPCol:       defaultEndIPCol,
		CountryCodeCol: defaultCountryCodeCol,
		Listen:         defaultListen,
	}
}

// ParseConfig reads a YAML config file on top of the defaults. Keys missing
// from the file keep their default values.
func ParseConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	content, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config %s", path)
	}
	if err := yaml.Unmarshal(content, conf); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config %s", path)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *Config) Validate() error {
	if c.StartIPCol < 0 || c.EndIPCol < 0 || c.CountryCodeCol < 0 {
		return errors.Errorf("column indices must not be negative: start=%d end=%d country=%d",
			c.StartIPCol, c.EndIPCol, c.CountryCodeCol)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	return nil
}

// Columns returns the caller-supplied fallback layout used when no known
// schema matches the first record.
func (c *Config) Columns() Columns {
	return Columns{
		StartIP:     c.StartIPCol,
		EndIP:       c.EndIPCol,
		CountryCode: c.CountryCodeCol,
	}
}
