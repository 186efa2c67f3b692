package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"gpusieve/internal/common/fsutil"
	"gpusieve/internal/layout"
)

// Defaults and bounds for the sieve settings.
const (
	DefaultSievePrimes    = 82486
	DefaultSieveSizeMbits = 64
	MinSieveSizeMbits     = 4
	MaxSieveSizeMbits     = 128
	DefaultLogLevel       = "info"
	DefaultAddr           = ":8080"
)

// Config holds runtime parameters for the sieve and its service.
// Zero values mean "unspecified" and are replaced by Defaults.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	SievePrimes    int    `json:"sieve_primes" yaml:"sieve_primes" toml:"sieve_primes"`
	SieveSizeMbits int    `json:"sieve_size_mbits" yaml:"sieve_size_mbits" toml:"sieve_size_mbits"`
	MoreClasses    bool   `json:"more_classes" yaml:"more_classes" toml:"more_classes"`
	RawBench       bool   `json:"raw_bench" yaml:"raw_bench" toml:"raw_bench"`
	LogLevel       string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile        string `json:"log_file" yaml:"log_file" toml:"log_file"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Defaults fills unspecified fields.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.SievePrimes == 0 {
		c.SievePrimes = DefaultSievePrimes
	}
	if c.SieveSizeMbits == 0 {
		c.SieveSizeMbits = DefaultSieveSizeMbits
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks ranges and clamps the prime budget into what the layout can
// represent. It returns a note describing any clamp so the caller can log it.
func (c *Config) Validate() (note string, err error) {
	if c.SieveSizeMbits < MinSieveSizeMbits || c.SieveSizeMbits > MaxSieveSizeMbits {
		return "", fmt.Errorf("sieve_size_mbits %d outside [%d, %d]", c.SieveSizeMbits, MinSieveSizeMbits, MaxSieveSizeMbits)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return "", fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	lo := layout.LaneWidth + c.Scheme().Prefix()
	switch {
	case c.SievePrimes < lo:
		note = fmt.Sprintf("sieve_primes %d raised to %d", c.SievePrimes, lo)
		c.SievePrimes = lo
	case c.SievePrimes > layout.MaxSievePrimes:
		note = fmt.Sprintf("sieve_primes %d lowered to %d", c.SievePrimes, layout.MaxSievePrimes)
		c.SievePrimes = layout.MaxSievePrimes
	}
	if c.LogFile != "" {
		p, err := fsutil.ExpandHome(c.LogFile)
		if err != nil {
			return note, err
		}
		c.LogFile = p
	}
	return note, nil
}

// Scheme returns the small-prime exclusion selected by MoreClasses.
func (c Config) Scheme() layout.Scheme { return layout.SchemeFor(c.MoreClasses) }

// SieveSizeBits is the bitmap capacity in bits.
func (c Config) SieveSizeBits() int { return c.SieveSizeMbits * 1024 * 1024 }
