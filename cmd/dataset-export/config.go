package main

import "errors"

type Config struct {
	InputDir   string
	DBPath     string
	ConfigPath string
	Verbose    bool
}

func (c Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("missing -in")
	}
	if c.DBPath == "" {
		return errors.New("missing -db")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputDir: "novel_work",
		DBPath:   "novel_work.db",
	}
}
