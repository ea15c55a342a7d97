// Package config loads and validates the application configuration.
//
// Configuration is a single YAML file layered over Default(); omitted
// fields keep their defaults, unknown fields are rejected. Validation
// failures are startup errors: a bad cost table or sweep interval must
// stop the process before it starts spending quota, never surface at
// call time.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/thebanglabrief/thebanglabrief/remote"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "90m" or "6h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"6h\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Costs is the per-kind price table in quota units.
type Costs struct {
	Video   int64 `yaml:"video"`
	Channel int64 `yaml:"channel"`
	List    int64 `yaml:"list"`
}

// TTLs is the per-kind cache lifetime table.
type TTLs struct {
	Videos   Duration `yaml:"videos"`
	Channels Duration `yaml:"channels"`
	Lists    Duration `yaml:"lists"`
}

// Config is the application configuration.
type Config struct {
	// StorePath is the directory of the embedded database.
	StorePath string `yaml:"store_path"`

	// MaxCacheBytes bounds the serialized size of all content
	// namespaces; the sweeper evicts oldest-first past it.
	MaxCacheBytes int64 `yaml:"max_cache_bytes"`

	// SweepInterval is how often the maintenance sweep runs.
	SweepInterval Duration `yaml:"sweep_interval"`

	// DailyLimit is the quota unit budget per local calendar day.
	DailyLimit int64 `yaml:"daily_limit"`

	Costs Costs `yaml:"costs"`
	TTLs  TTLs  `yaml:"ttls"`

	// BurstPerSecond and BurstSize configure the optional dispatch
	// pacer; zero BurstPerSecond disables it.
	BurstPerSecond float64 `yaml:"burst_per_second"`
	BurstSize      int     `yaml:"burst_size"`
}

// Default returns the documented defaults. They mirror the remote
// package's price and lifetime tables.
func Default() *Config {
	costs := remote.DefaultCosts()
	ttls := remote.DefaultTTLs()
	return &Config{
		StorePath:     "data/cache",
		MaxCacheBytes: 64 << 20,
		SweepInterval: Duration(time.Hour),
		DailyLimit:    10_000,
		Costs: Costs{
			Video:   costs.Video,
			Channel: costs.Channel,
			List:    costs.List,
		},
		TTLs: TTLs{
			Videos:   Duration(ttls.Videos),
			Channels: Duration(ttls.Channels),
			Lists:    Duration(ttls.Lists),
		},
	}
}

// Load reads path, layers it over Default() and validates the result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the governor or engine would panic on.
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return errors.New("store_path must not be empty")
	}
	if c.MaxCacheBytes <= 0 {
		return errors.New("max_cache_bytes must be > 0")
	}
	if c.SweepInterval.Std() <= 0 {
		return errors.New("sweep_interval must be > 0")
	}
	if c.DailyLimit <= 0 {
		return errors.New("daily_limit must be > 0")
	}
	if c.Costs.Video < 0 || c.Costs.Channel < 0 || c.Costs.List < 0 {
		return errors.New("costs must not be negative")
	}
	if maxCost := c.maxSingleCost(); maxCost > c.DailyLimit {
		return fmt.Errorf("largest call cost %d exceeds daily_limit %d: such calls would never be admitted", maxCost, c.DailyLimit)
	}
	if c.TTLs.Videos < 0 || c.TTLs.Channels < 0 || c.TTLs.Lists < 0 {
		return errors.New("ttls must not be negative")
	}
	if c.BurstPerSecond < 0 {
		return errors.New("burst_per_second must not be negative")
	}
	if c.BurstPerSecond > 0 && c.BurstSize <= 0 {
		return errors.New("burst_size must be > 0 when burst_per_second is set")
	}
	return nil
}

func (c *Config) maxSingleCost() int64 {
	m := c.Costs.Video
	if c.Costs.Channel > m {
		m = c.Costs.Channel
	}
	if c.Costs.List > m {
		m = c.Costs.List
	}
	return m
}

// RemoteCosts converts the cost table for remote.Options.
func (c *Config) RemoteCosts() remote.Costs {
	return remote.Costs{Video: c.Costs.Video, Channel: c.Costs.Channel, List: c.Costs.List}
}

// RemoteTTLs converts the lifetime table for remote.Options.
func (c *Config) RemoteTTLs() remote.TTLs {
	return remote.TTLs{
		Videos:   c.TTLs.Videos.Std(),
		Channels: c.TTLs.Channels.Std(),
		Lists:    c.TTLs.Lists.Std(),
	}
}

// Pacer builds the dispatch limiter, or nil when pacing is disabled.
func (c *Config) Pacer() *rate.Limiter {
	if c.BurstPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.BurstPerSecond), c.BurstSize)
}
