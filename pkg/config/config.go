// Package config holds logql-cli settings. Values come from built-in
// defaults, then an optional YAML file, then flags (or their LOGQL_CLI_*
// environment equivalents) that were set explicitly.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendReadline = "readline"
	BackendPrompt   = "prompt"
)

type Config struct {
	Loki     Loki     `yaml:"loki"`
	Complete Complete `yaml:"complete"`
	REPL     REPL     `yaml:"repl"`
	Log      Log      `yaml:"log"`
}

type Loki struct {
	URL         string        `yaml:"url"`
	OrgID       string        `yaml:"org_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	BearerToken string        `yaml:"bearer_token"`
	Timeout     time.Duration `yaml:"timeout"`
	Lookback    time.Duration `yaml:"lookback"`
	QPS         float64       `yaml:"qps"`
}

type Complete struct {
	Limit         int           `yaml:"limit"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	Debounce      time.Duration `yaml:"debounce"`
}

type REPL struct {
	Backend     string `yaml:"backend"`
	HistoryFile string `yaml:"history_file"`
	// StreamsFile seeds an offline label index when no Loki URL is set.
	StreamsFile string `yaml:"streams_file"`
}

type Log struct {
	Level int    `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Loki: Loki{
			Timeout:  10 * time.Second,
			Lookback: time.Hour,
		},
		Complete: Complete{
			Limit:         20,
			LookupTimeout: 5 * time.Second,
			Debounce:      150 * time.Millisecond,
		},
		REPL: REPL{
			Backend:     BackendReadline,
			HistoryFile: DefaultHistoryFile(),
		},
	}
}

// DefaultHistoryFile is ~/.logql-cli_history, falling back to the working
// directory when there is no home directory.
func DefaultHistoryFile() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".logql-cli_history")
	}
	if cwd, err := os.Getwd(); err == nil && cwd != "" {
		return filepath.Join(cwd, ".logql-cli_history")
	}
	return ".logql-cli_history"
}

// Load overlays the YAML file at path onto cfg. Unknown keys are rejected.
func Load(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Loki.URL != "" {
		u, err := url.Parse(c.Loki.URL)
		if err != nil {
			return fmt.Errorf("loki.url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("loki.url: scheme must be http or https, got %q", u.Scheme)
		}
	}
	for name, d := range map[string]time.Duration{
		"loki.timeout":            c.Loki.Timeout,
		"loki.lookback":           c.Loki.Lookback,
		"complete.lookup_timeout": c.Complete.LookupTimeout,
		"complete.debounce":       c.Complete.Debounce,
	} {
		if d < 0 {
			return fmt.Errorf("%s: must not be negative", name)
		}
	}
	if c.Loki.QPS < 0 {
		return errors.New("loki.qps: must not be negative")
	}
	if c.Complete.Limit < 1 {
		return fmt.Errorf("complete.limit: must be at least 1, got %d", c.Complete.Limit)
	}
	switch c.REPL.Backend {
	case BackendReadline, BackendPrompt:
	default:
		return fmt.Errorf("repl.backend: unknown backend %q (want %s or %s)", c.REPL.Backend, BackendReadline, BackendPrompt)
	}
	return nil
}

// Flags binds command-line flags to configuration fields.
type Flags struct {
	fs         *flag.FlagSet
	configPath string
	values     Config
	apply      map[string]func(dst, src *Config)
}

// RegisterFlags defines the configuration flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs, values: Default(), apply: make(map[string]func(dst, src *Config))}
	v := &f.values

	fs.StringVar(&f.configPath, "config", "", "YAML config file")

	f.str("loki-url", &v.Loki.URL, "Loki base URL; empty uses the offline stream index", func(d, s *Config) { d.Loki.URL = s.Loki.URL })
	f.str("org-id", &v.Loki.OrgID, "tenant sent as X-Scope-OrgID", func(d, s *Config) { d.Loki.OrgID = s.Loki.OrgID })
	f.str("username", &v.Loki.Username, "basic auth user", func(d, s *Config) { d.Loki.Username = s.Loki.Username })
	f.str("password", &v.Loki.Password, "basic auth password", func(d, s *Config) { d.Loki.Password = s.Loki.Password })
	f.str("bearer-token", &v.Loki.BearerToken, "bearer token", func(d, s *Config) { d.Loki.BearerToken = s.Loki.BearerToken })
	f.dur("timeout", &v.Loki.Timeout, "HTTP request timeout", func(d, s *Config) { d.Loki.Timeout = s.Loki.Timeout })
	f.dur("lookback", &v.Loki.Lookback, "time range searched for labels", func(d, s *Config) { d.Loki.Lookback = s.Loki.Lookback })
	fs.Float64Var(&v.Loki.QPS, "qps", v.Loki.QPS, "max Loki requests per second (0 = unlimited)")
	f.apply["qps"] = func(d, s *Config) { d.Loki.QPS = s.Loki.QPS }

	fs.IntVar(&v.Complete.Limit, "limit", v.Complete.Limit, "max suggestions shown")
	f.apply["limit"] = func(d, s *Config) { d.Complete.Limit = s.Complete.Limit }
	f.dur("lookup-timeout", &v.Complete.LookupTimeout, "bound on each label lookup", func(d, s *Config) { d.Complete.LookupTimeout = s.Complete.LookupTimeout })
	f.dur("debounce", &v.Complete.Debounce, "delay before suggestions refresh", func(d, s *Config) { d.Complete.Debounce = s.Complete.Debounce })

	f.str("repl", &v.REPL.Backend, "REPL backend: readline|prompt", func(d, s *Config) { d.REPL.Backend = s.REPL.Backend })
	f.str("history-file", &v.REPL.HistoryFile, "query history file", func(d, s *Config) { d.REPL.HistoryFile = s.REPL.HistoryFile })
	f.str("streams", &v.REPL.StreamsFile, "stream fixture (.yaml or Prometheus text) for offline completion", func(d, s *Config) { d.REPL.StreamsFile = s.REPL.StreamsFile })

	fs.IntVar(&v.Log.Level, "log-level", v.Log.Level, "log verbosity (0 info, 1 debug, 2 trace)")
	f.apply["log-level"] = func(d, s *Config) { d.Log.Level = s.Log.Level }
	f.str("log-file", &v.Log.File, "JSON log destination ('-' for stderr)", func(d, s *Config) { d.Log.File = s.Log.File })
	return f
}

func (f *Flags) str(name string, p *string, usage string, apply func(dst, src *Config)) {
	f.fs.StringVar(p, name, *p, usage)
	f.apply[name] = apply
}

func (f *Flags) dur(name string, p *time.Duration, usage string, apply func(dst, src *Config)) {
	f.fs.DurationVar(p, name, *p, usage)
	f.apply[name] = apply
}

// Resolve builds the effective configuration after the flag set is parsed.
func (f *Flags) Resolve() (Config, error) {
	cfg := Default()
	if f.configPath != "" {
		if err := Load(f.configPath, &cfg); err != nil {
			return Config{}, err
		}
	}
	f.fs.Visit(func(fl *flag.Flag) {
		if apply, ok := f.apply[fl.Name]; ok {
			apply(&cfg, &f.values)
		}
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
