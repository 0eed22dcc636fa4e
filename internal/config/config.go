// Package config holds the validated run configuration of a fetch.
//
// Values are layered, lowest precedence first: survey preset defaults, an
// optional YAML file, CUTOUTS_* environment variables (including a .env file
// loaded by the CLI), then command line flags. Every option has a YAML key
// and a CUTOUTS_ variable named after it (CUTOUTS_SLEEP, CUTOUTS_ID_COL,
// CUTOUTS_REFRESH_CATALOG, ...).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/skysurvey/cutouts/internal/catalog"
	"github.com/skysurvey/cutouts/internal/progress"
	"github.com/skysurvey/cutouts/internal/survey"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CUTOUTS_"

// Config enumerates every option of a fetch run.
type Config struct {
	Survey  string          `yaml:"survey"`
	Catalog string          `yaml:"catalog"`
	Columns catalog.Columns `yaml:"columns"`
	Output  string          `yaml:"output"`

	Params  survey.Params `yaml:"params"`
	BaseURL string        `yaml:"base_url"`

	Sleep        time.Duration `yaml:"sleep"`
	Timeout      time.Duration `yaml:"timeout"`
	Retries      int           `yaml:"retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	Limit     int    `yaml:"limit"`
	Progress  string `yaml:"progress"`
	Report    string `yaml:"report"`
	UserAgent string `yaml:"user_agent"`

	CacheDir       string `yaml:"cache_dir"`
	RefreshCatalog bool   `yaml:"refresh_catalog"`
}

// Defaults returns the preset configuration for the named survey.
func Defaults(name string) (Config, error) {
	s, err := survey.Lookup(name)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Survey:       s.Name,
		Catalog:      s.DefaultCatalog,
		Columns:      s.Columns,
		Output:       s.DefaultOutput,
		Params:       s.Defaults,
		Sleep:        s.Sleep,
		Timeout:      60 * time.Second,
		RetryBackoff: time.Second,
		Progress:     string(progress.StyleLine),
	}, nil
}

// Sources names the layers above the survey preset.
type Sources struct {
	// Survey is the survey chosen on the command line; empty when unset.
	Survey string
	// File is an optional YAML config path.
	File string
	// Lookup reads environment variables; nil skips the env layer.
	Lookup func(string) (string, bool)
}

// Load resolves the survey (command line, then CUTOUTS_SURVEY, then the
// file, then legacy) and applies the file and environment onto its preset.
// Keys present in a layer override lower layers even when zero, so
// "sleep: 0s" or CUTOUTS_SLEEP=0s disable the delay.
func Load(src Sources) (Config, error) {
	var data []byte
	var file Config
	if src.File != "" {
		var err error
		data, err = os.ReadFile(src.File)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", src.File, err)
		}
		if err := file.applyYAML(data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", src.File, err)
		}
	}

	name := survey.Legacy
	switch {
	case src.Survey != "":
		name = src.Survey
	case envString(src.Lookup, "SURVEY") != "":
		name = envString(src.Lookup, "SURVEY")
	case file.Survey != "":
		name = file.Survey
	}

	c, err := Defaults(name)
	if err != nil {
		return Config{}, err
	}
	if data != nil {
		if err := c.applyYAML(data); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", src.File, err)
		}
	}
	if src.Lookup != nil {
		if err := c.ApplyEnv(src.Lookup); err != nil {
			return Config{}, err
		}
	}
	c.Survey = name
	return c, nil
}

// applyYAML decodes data onto c. Absent keys keep their current value;
// unknown keys are rejected.
func (c *Config) applyYAML(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func envString(lookup func(string) (string, bool), key string) string {
	if lookup == nil {
		return ""
	}
	v, _ := lookup(EnvPrefix + key)
	return strings.TrimSpace(v)
}

// ApplyEnv overrides c with every CUTOUTS_* variable that is set and
// non-empty. Parse errors are collected and returned together.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	fail := func(key string, err error) {
		errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
	}

	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = d
		}
	}
	num := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = f
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				fail(key, err)
				return
			}
			*dst = b
		}
	}

	str("SURVEY", &c.Survey)
	str("CATALOG", &c.Catalog)
	str("ID_COL", &c.Columns.ID)
	str("RA_COL", &c.Columns.RA)
	str("DEC_COL", &c.Columns.Dec)
	str("OUTPUT", &c.Output)
	float("PIXSCALE", &c.Params.PixScale)
	num("SIZE", &c.Params.Size)
	num("WIDTH", &c.Params.Width)
	num("HEIGHT", &c.Params.Height)
	str("LAYER", &c.Params.Layer)
	str("BASE_URL", &c.BaseURL)
	dur("SLEEP", &c.Sleep)
	dur("TIMEOUT", &c.Timeout)
	num("RETRIES", &c.Retries)
	dur("RETRY_BACKOFF", &c.RetryBackoff)
	num("LIMIT", &c.Limit)
	str("PROGRESS", &c.Progress)
	str("REPORT", &c.Report)
	str("USER_AGENT", &c.UserAgent)
	str("CACHE_DIR", &c.CacheDir)
	flag("REFRESH_CATALOG", &c.RefreshCatalog)

	return errors.Join(errs...)
}

// Validate checks the whole configuration once, before any work starts.
func (c Config) Validate() error {
	s, err := survey.Lookup(c.Survey)
	if err != nil {
		return err
	}

	var errs []error
	if err := s.Validate(c.Params); err != nil {
		errs = append(errs, err)
	}
	if err := c.Columns.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Catalog == "" {
		errs = append(errs, errors.New("catalog path is required"))
	}
	if c.Output == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Sleep < 0 {
		errs = append(errs, fmt.Errorf("sleep must not be negative, got %s", c.Sleep))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must not be negative, got %d", c.Retries))
	}
	if c.Retries > 0 && c.RetryBackoff <= 0 {
		errs = append(errs, fmt.Errorf("retry backoff must be positive, got %s", c.RetryBackoff))
	}
	if c.Limit < 0 {
		errs = append(errs, fmt.Errorf("limit must not be negative, got %d", c.Limit))
	}
	if _, err := progress.ParseStyle(c.Progress); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// URLBuilder returns the cutout URL builder for the configured survey.
func (c Config) URLBuilder() (survey.URLBuilder, error) {
	s, err := survey.Lookup(c.Survey)
	if err != nil {
		return nil, err
	}
	return s.Builder(c.BaseURL, c.Params), nil
}

// DownloadConfig returns the remote catalog cache settings.
func (c Config) DownloadConfig() catalog.DownloadConfig {
	return catalog.DownloadConfig{
		CacheDir:      c.CacheDir,
		ForceDownload: c.RefreshCatalog,
	}
}
