package app

import (
	"errors"
	"flag"
)

type Config struct {
	PairsFile       string // Reference table to calibrate from
	OutputDir       string
	SkipOutOfDomain bool
	WriteTemplate   string // Write the default reference table to this path and exit
}

func NewConfig() *Config {
	return &Config{
		OutputDir: ".",
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	flag.StringVar(&c.PairsFile, "pairs", "", "Path to the tab-separated reference table (d, E, remarks)")
	flag.StringVar(&c.OutputDir, "o", c.OutputDir, "Directory for the calibration file")
	flag.BoolVar(&c.SkipOutOfDomain, "skip-out-of-domain", false, "Skip pairs outside the arcsine domain instead of failing")
	flag.StringVar(&c.WriteTemplate, "write-template", "", "Write the default reference table to the given path and exit")
	flag.Parse()

	if err := c.Validate(); err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.WriteTemplate != "" {
		if c.PairsFile != "" {
			return errors.New("-pairs and -write-template are mutually exclusive")
		}
		return nil
	}

	if c.PairsFile == "" {
		return errors.New("pairs file is required")
	}
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}
	return nil
}
