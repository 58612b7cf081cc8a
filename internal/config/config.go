package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxUpload is the largest upload accepted per request (10MiB)
	DefaultMaxUpload = 10 * 1024 * 1024
	// DefaultPlatformCeiling is the absolute buffer ceiling, independent of configuration (4GiB)
	DefaultPlatformCeiling = 4 * 1024 * 1024 * 1024
	// DefaultMaxOutput is the capture ceiling applied to each of stdout and stderr (10MiB)
	DefaultMaxOutput = 10 * 1024 * 1024
	// DefaultOverrideEnv names the variable whose value is tried before every configured candidate
	DefaultOverrideEnv = "PYTHON_PATH"

	// scopeDirName is the directory under TempDir that holds in-flight artifacts
	scopeDirName = "warm-ranker"
)

// ByteSize is a size in bytes that decodes from either an integer or a human string ("10MiB")
type ByteSize int64

// UnmarshalYAML accepts plain integers and go-units strings
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	size, err := ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = ByteSize(size)
	return nil
}

// String renders the size the way it would be written in a config file
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// ParseSize parses sizes such as "512k", "10MiB" or "4294967296" using binary multiples
func ParseSize(s string) (int64, error) {
	size, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return size, nil
}

// Config is the process-wide ranking configuration. It is built once at startup and
// never mutated afterwards.
type Config struct {
	MaxUpload       ByteSize          `yaml:"max_upload"`
	PlatformCeiling ByteSize          `yaml:"platform_ceiling"`
	MaxOutput       ByteSize          `yaml:"max_output"`
	Candidates      []string          `yaml:"candidates"`
	OverrideEnv     string            `yaml:"override_env"`
	Args            []string          `yaml:"args"`
	Environment     map[string]string `yaml:"environment,omitempty"`
	TempDir         string            `yaml:"temp_dir,omitempty"`
	Timeout         time.Duration     `yaml:"timeout,omitempty"`
	CORSOrigins     []string          `yaml:"cors_origins,omitempty"`

	// override is the value of OverrideEnv captured by Resolve
	override string
}

// Default returns the configuration used when no file or environment overrides are given
func Default() *Config {
	return &Config{
		MaxUpload:       DefaultMaxUpload,
		PlatformCeiling: DefaultPlatformCeiling,
		MaxOutput:       DefaultMaxOutput,
		Candidates:      []string{"/usr/bin/python3", "/usr/local/bin/python3", "python3", "python"},
		OverrideEnv:     DefaultOverrideEnv,
		Args:            []string{"warm_ranker.py"},
		CORSOrigins:     []string{"*"},
	}
}

// Load reads a YAML file on top of the defaults. Fields missing from the file keep their default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// FromEnvironment loads RANKER_CONFIG when set, applies the RANKER_* overrides and resolves the result
func FromEnvironment() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("RANKER_CONFIG"); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Resolve(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays RANKER_* variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	sizes := []struct {
		key string
		dst *ByteSize
	}{
		{"RANKER_MAX_UPLOAD", &c.MaxUpload},
		{"RANKER_PLATFORM_CEILING", &c.PlatformCeiling},
		{"RANKER_MAX_OUTPUT", &c.MaxOutput},
	}
	for _, s := range sizes {
		if v, ok := lookup(s.key); ok && v != "" {
			size, err := ParseSize(v)
			if err != nil {
				return fmt.Errorf("%s: %w", s.key, err)
			}
			*s.dst = ByteSize(size)
		}
	}

	if v, ok := lookup("RANKER_CANDIDATES"); ok && v != "" {
		c.Candidates = splitList(v)
	}
	if v, ok := lookup("RANKER_ARGS"); ok {
		c.Args = splitList(v)
	}
	if v, ok := lookup("RANKER_TEMP_DIR"); ok && v != "" {
		c.TempDir = v
	}
	if v, ok := lookup("RANKER_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RANKER_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// Resolve validates the configuration and captures the override value. It must be
// called once before the config is handed to the pipeline.
func (c *Config) Resolve(lookup func(string) (string, bool)) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.OverrideEnv != "" {
		if v, ok := lookup(c.OverrideEnv); ok {
			c.override = strings.TrimSpace(v)
		}
	}
	return nil
}

// Validate checks ceilings and the candidate list
func (c *Config) Validate() error {
	if c.MaxUpload <= 0 {
		return fmt.Errorf("max_upload must be positive, got %d", c.MaxUpload)
	}
	if c.PlatformCeiling <= 0 {
		return fmt.Errorf("platform_ceiling must be positive, got %d", c.PlatformCeiling)
	}
	if c.MaxUpload > c.PlatformCeiling {
		return fmt.Errorf("max_upload (%s) exceeds platform_ceiling (%s)", c.MaxUpload, c.PlatformCeiling)
	}
	if c.MaxOutput <= 0 {
		return fmt.Errorf("max_output must be positive, got %d", c.MaxOutput)
	}
	if len(c.Candidates) == 0 {
		return fmt.Errorf("at least one candidate executable is required")
	}
	for i, candidate := range c.Candidates {
		if strings.TrimSpace(candidate) == "" {
			return fmt.Errorf("candidate %d is empty", i)
		}
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// EffectiveCandidates returns the search order: the override first when set, then the
// configured candidates with any duplicate of the override removed.
func (c *Config) EffectiveCandidates() []string {
	out := make([]string, 0, len(c.Candidates)+1)
	if c.override != "" {
		out = append(out, c.override)
	}
	for _, candidate := range c.Candidates {
		if candidate == c.override {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

// ScopeDir is the directory holding in-flight artifacts
func (c *Config) ScopeDir() string {
	base := c.TempDir
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, scopeDirName)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
