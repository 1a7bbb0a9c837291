package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/avast/apkres"
)

// config is the YAML options file. Command line flags win over it.
type config struct {
	KeepBroken  bool  `yaml:"keep_broken"`
	Verbose     bool  `yaml:"verbose"`
	MaxFileSize int64 `yaml:"max_file_size"`

	// Attrs is the default JSON attribute name map of the xml command.
	Attrs string `yaml:"attrs"`
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read options file")
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "invalid options file %s", path)
	}
	if cfg.MaxFileSize < 0 {
		return nil, errors.Errorf("invalid options file %s: negative max_file_size", path)
	}
	return cfg, nil
}

func (c *config) apply(args *Args) {
	c.KeepBroken = c.KeepBroken || args.KeepBroken
	c.Verbose = c.Verbose || args.Verbose
	if args.Xml != nil && args.Xml.Attrs == "" {
		args.Xml.Attrs = c.Attrs
	}
}

func (c *config) maxFileSize() int64 {
	if c.MaxFileSize > 0 {
		return c.MaxFileSize
	}
	return apkres.DefaultMaxFileSize
}

func (c *config) options() apkres.Options {
	return apkres.Options{
		KeepBroken:  c.KeepBroken,
		MaxFileSize: c.MaxFileSize,
		Logger:      newLogger(c.Verbose),
	}
}
