package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"gpusieve/internal/common/fsutil"
	"gpusieve/internal/config"
)

// Options carries global flags and the resolved configuration.
type Options struct {
	ConfigPath string
	Config     config.Config

	Log     zerolog.Logger
	Out     io.Writer
	closeFn func() error
}

// resolve merges the config file with explicitly set flags, applies defaults
// and validates.
func (o *Options) resolve(flags *pflag.FlagSet, errOut io.Writer) error {
	var cfg config.Config
	if o.ConfigPath != "" {
		path, err := fsutil.ExpandHome(o.ConfigPath)
		if err != nil {
			return err
		}
		if !fsutil.PathExists(path) {
			return fmt.Errorf("config file %s not found", o.ConfigPath)
		}
		if cfg, err = config.Load(path); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	overrideFromFlags(&cfg, &o.Config, flags)
	cfg.Defaults()
	note, err := cfg.Validate()
	if err != nil {
		return err
	}
	o.Config = cfg

	w, closeFn, err := openLogOutput(cfg.LogFile, errOut)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	o.closeFn = closeFn
	o.Log = newLogger(cfg.LogLevel, w)
	if note != "" {
		o.Log.Warn().Msg(note)
	}
	return nil
}

func (o *Options) close() {
	if o.closeFn != nil {
		_ = o.closeFn()
		o.closeFn = nil
	}
}

// overrideFromFlags copies every flag the user set explicitly from src into dst.
func overrideFromFlags(dst, src *config.Config, flags *pflag.FlagSet) {
	if flags == nil {
		return
	}
	set := func(name string, apply func()) {
		if f := flags.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("addr", func() { dst.Addr = src.Addr })
	set("primes", func() { dst.SievePrimes = src.SievePrimes })
	set("sieve-size-mbits", func() { dst.SieveSizeMbits = src.SieveSizeMbits })
	set("more-classes", func() { dst.MoreClasses = src.MoreClasses })
	set("raw-bench", func() { dst.RawBench = src.RawBench })
	set("log-level", func() { dst.LogLevel = src.LogLevel })
	set("log-file", func() { dst.LogFile = src.LogFile })
}
