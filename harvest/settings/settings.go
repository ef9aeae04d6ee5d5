// Package settings loads the optional YAML settings file shared by the harvest commands and
// applies it beneath command-line flags.
//
// A value from the file only fills a flag the user did not set explicitly, so the precedence is
// flag, then file, then the command's default.
package settings

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/theimaginaryfoundation/novel-harvest/harvest"
	"github.com/theimaginaryfoundation/novel-harvest/harvest/fetch"
	"gopkg.in/yaml.v3"
)

// EnvConfig names the settings file when -config is not given.
const EnvConfig = "HARVEST_CONFIG"

// Fetch is the HTTP client tuning shared by every command that crawls.
type Fetch struct {
	BaseURL           string        `yaml:"base_url"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	UserAgent         string        `yaml:"user_agent"`
}

func DefaultFetch() Fetch {
	return Fetch{
		BaseURL:     harvest.DefaultBaseURL,
		MaxAttempts: fetch.DefaultMaxAttempts,
		RetryDelay:  fetch.DefaultRetryDelay,
		Timeout:     fetch.DefaultTimeout,
		UserAgent:   fetch.DefaultUserAgent,
	}
}

// RegisterFlags binds the fetch flags to f. Current field values become the flag defaults.
func (f *Fetch) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.BaseURL, "base-url", f.BaseURL, "Site base URL")
	fs.IntVar(&f.MaxAttempts, "max-attempts", f.MaxAttempts, "Total tries per page before giving up")
	fs.DurationVar(&f.RetryDelay, "retry-delay", f.RetryDelay, "Wait between tries")
	fs.DurationVar(&f.Timeout, "timeout", f.Timeout, "Per-request timeout")
	fs.Float64Var(&f.RequestsPerSecond, "rps", f.RequestsPerSecond, "Request rate limit across all workers (0 = unlimited)")
	fs.StringVar(&f.UserAgent, "user-agent", f.UserAgent, "User-Agent header")
}

func (f Fetch) Validate() error {
	if strings.TrimSpace(f.BaseURL) == "" {
		return errors.New("-base-url is required")
	}
	if f.MaxAttempts <= 0 {
		return errors.New("-max-attempts must be > 0")
	}
	if f.RetryDelay < 0 {
		return errors.New("-retry-delay must be >= 0")
	}
	if f.Timeout <= 0 {
		return errors.New("-timeout must be > 0")
	}
	if f.RequestsPerSecond < 0 {
		return errors.New("-rps must be >= 0")
	}
	return nil
}

// Options converts f for fetch.New. A zero RetryDelay stays zero instead of taking the default.
func (f Fetch) Options() fetch.Options {
	delay := f.RetryDelay
	if delay == 0 {
		delay = -1
	}
	return fetch.Options{
		MaxAttempts:       f.MaxAttempts,
		RetryDelay:        delay,
		Timeout:           f.Timeout,
		RequestsPerSecond: f.RequestsPerSecond,
		UserAgent:         f.UserAgent,
	}
}

func (f Fetch) URLs() harvest.URLs {
	return harvest.URLs{Base: f.BaseURL}
}

// File is the YAML settings file. Every key is optional.
type File struct {
	Fetch Fetch `yaml:"fetch"`

	Seeds     string `yaml:"seeds"`
	CacheDir  string `yaml:"cache_dir"`
	OutDir    string `yaml:"out_dir"`
	DBPath    string `yaml:"db"`
	SchemaDir string `yaml:"schema_dir"`

	NumChunks int  `yaml:"num_chunks"`
	Workers   int  `yaml:"workers"`
	MaxPages  int  `yaml:"max_pages"`
	Verbose   bool `yaml:"verbose"`
}

// Load reads a settings file. Unknown keys are an error.
func Load(path string) (File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read settings file %q: %w", path, err)
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse settings file %q: %w", path, err)
	}
	return f, nil
}

// FlagValues maps the file's non-zero values to the flag names the commands use.
func (f File) FlagValues() map[string]string {
	out := make(map[string]string)
	putString := func(name, v string) {
		if strings.TrimSpace(v) != "" {
			out[name] = v
		}
	}
	putInt := func(name string, v int) {
		if v != 0 {
			out[name] = strconv.Itoa(v)
		}
	}
	putDuration := func(name string, v time.Duration) {
		if v != 0 {
			out[name] = v.String()
		}
	}

	putString("base-url", f.Fetch.BaseURL)
	putInt("max-attempts", f.Fetch.MaxAttempts)
	putDuration("retry-delay", f.Fetch.RetryDelay)
	putDuration("timeout", f.Fetch.Timeout)
	if f.Fetch.RequestsPerSecond != 0 {
		out["rps"] = strconv.FormatFloat(f.Fetch.RequestsPerSecond, 'g', -1, 64)
	}
	putString("user-agent", f.Fetch.UserAgent)

	putString("seeds", f.Seeds)
	putString("cache-dir", f.CacheDir)
	putString("out", f.OutDir)
	putString("db", f.DBPath)
	putString("schema-dir", f.SchemaDir)
	putInt("chunks", f.NumChunks)
	putInt("workers", f.Workers)
	putInt("max-pages", f.MaxPages)
	if f.Verbose {
		out["verbose"] = "true"
	}
	return out
}

// ExplicitFlags returns the names of flags set on the command line.
func ExplicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// Apply copies file values into fs for every flag fs defines that was not set explicitly.
func Apply(fs *flag.FlagSet, f File) error {
	explicit := ExplicitFlags(fs)
	for name, value := range f.FlagValues() {
		if explicit[name] || fs.Lookup(name) == nil {
			continue
		}
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("settings %s=%q: %w", name, value, err)
		}
	}
	return nil
}

// ApplyFile loads path, or $HARVEST_CONFIG when path is empty, and applies it to an already
// parsed fs. With neither set it does nothing.
func ApplyFile(fs *flag.FlagSet, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfig))
	}
	if path == "" {
		return nil
	}
	f, err := Load(path)
	if err != nil {
		return err
	}
	return Apply(fs, f)
}
