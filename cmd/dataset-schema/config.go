package main

import "errors"

type Config struct {
	OutputDir  string
	ConfigPath string
}

func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("missing -schema-dir")
	}
	return nil
}

func defaultConfig() Config {
	return Config{OutputDir: "schemas"}
}
