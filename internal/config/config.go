// Package config loads roomsync configuration from YAML files.
//
// Files are checked against an embedded CUE schema before decoding, so a
// typo in a key or a malformed duration is reported with its path instead
// of being silently ignored.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/roomsync/internal/engine"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

//go:embed schema.cue
var schemaCUE string

// Config is the full configuration of one roomsync client.
type Config struct {
	// Identity is who the client acts as.
	Identity string `yaml:"identity"`
	// Ledger is the path of the ledger SQLite file.
	Ledger string `yaml:"ledger"`
	// Cache is the path of the cache SQLite file. Empty keeps the cache in
	// memory, which costs a full scan on every start.
	Cache            string          `yaml:"cache"`
	CacheKey         string          `yaml:"cache_key"`
	SyncInterval     time.Duration   `yaml:"sync_interval"`
	RequestInterval  time.Duration   `yaml:"request_interval"`
	MaxClaimAttempts int             `yaml:"max_claim_attempts"`
	Profiles         []ProfileConfig `yaml:"profiles"`
}

// ProfileConfig describes a known identity.
type ProfileConfig struct {
	Identity string   `yaml:"identity"`
	Name     string   `yaml:"name"`
	Blocked  []string `yaml:"blocked"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		CacheKey:        engine.DefaultCacheKey,
		SyncInterval:    engine.DefaultSyncInterval,
		RequestInterval: engine.DefaultRequestInterval,
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse checks data against the schema and decodes it over Default().
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func validateSchema(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks the fields every command needs, after flag overrides.
func (c *Config) Validate() error {
	var errs []error
	if c.Identity == "" {
		errs = append(errs, errors.New("identity is required"))
	} else if err := ledger.Identity(c.Identity).Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Ledger == "" {
		errs = append(errs, errors.New("ledger path is required"))
	}
	if c.SyncInterval <= 0 {
		errs = append(errs, fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval))
	}
	if c.RequestInterval <= 0 {
		errs = append(errs, fmt.Errorf("request_interval must be positive, got %s", c.RequestInterval))
	}
	if c.MaxClaimAttempts < 0 {
		errs = append(errs, fmt.Errorf("max_claim_attempts must not be negative, got %d", c.MaxClaimAttempts))
	}
	return errors.Join(errs...)
}

// EngineOptions returns the engine options the configuration describes.
func (c *Config) EngineOptions() []engine.EngineOption {
	opts := []engine.EngineOption{
		engine.WithSyncInterval(c.SyncInterval),
		engine.WithRequestInterval(c.RequestInterval),
		engine.WithMaxClaimAttempts(c.MaxClaimAttempts),
	}
	if c.CacheKey != "" {
		opts = append(opts, engine.WithCacheKey(c.CacheKey))
	}
	if len(c.Profiles) > 0 {
		opts = append(opts, engine.WithProfiles(c.Directory()))
	}
	return opts
}

// Directory builds the profile directory for the configured identity.
func (c *Config) Directory() *rooms.Directory {
	profiles := make([]rooms.Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		blocked := make([]ledger.Identity, len(p.Blocked))
		for i, b := range p.Blocked {
			blocked[i] = ledger.Identity(b)
		}
		profiles = append(profiles, rooms.Profile{
			Identity: ledger.Identity(p.Identity),
			Name:     p.Name,
			Blocked:  blocked,
		})
	}
	return rooms.NewDirectory(ledger.Identity(c.Identity), profiles...)
}
