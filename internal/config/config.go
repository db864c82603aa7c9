package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tablemap/tablemap/internal/logger"
	"github.com/tablemap/tablemap/internal/storage"
)

var Logger = logger.GetLogger("config")

// Config is the full set of tunables for a run.
type Config struct {
	Strategies   Strategies `mapstructure:"strategies" yaml:"strategies"`
	Workers      int        `mapstructure:"workers" yaml:"workers"`       // 0 means one per CPU
	MapFormat    string     `mapstructure:"map_format" yaml:"map_format"` // "json" or "yaml"
	LogFile      string     `mapstructure:"log_file" yaml:"log_file"`
	Debug        bool       `mapstructure:"debug" yaml:"debug"`
	CSVBOM       bool       `mapstructure:"csv_bom" yaml:"csv_bom"`
	WriteRetries int        `mapstructure:"write_retries" yaml:"write_retries"`
}

// Strategies toggles detectors and extraction strategies.
type Strategies struct {
	Lattice       bool `mapstructure:"lattice" yaml:"lattice"`
	Stream        bool `mapstructure:"stream" yaml:"stream"`
	TextOnly      bool `mapstructure:"text_only" yaml:"text_only"`
	MergeLattice  bool `mapstructure:"merge_lattice" yaml:"merge_lattice"`
	Hybrid        bool `mapstructure:"hybrid" yaml:"hybrid"`
	TextAlignment bool `mapstructure:"text_alignment" yaml:"text_alignment"`
}

func Default() *Config {
	return &Config{
		Strategies: Strategies{
			Lattice:       true,
			Stream:        true,
			TextOnly:      true,
			MergeLattice:  true,
			Hybrid:        true,
			TextAlignment: true,
		},
		MapFormat:    "json",
		CSVBOM:       true,
		WriteRetries: storage.DefaultAttempts,
	}
}

// Validate rejects values no command can run with.
func (c *Config) Validate() error {
	switch c.MapFormat {
	case "json", "yaml":
	default:
		return fmt.Errorf("map_format must be json or yaml, got %q", c.MapFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.WriteRetries < 1 {
		return fmt.Errorf("write_retries must be at least 1, got %d", c.WriteRetries)
	}
	return nil
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager loads defaults, the optional config file and TABLEMAP_
// environment overrides. With an empty cfgFile it looks for tablemap.yaml in
// the working directory and $HOME/.tablemap; a missing file is not an error.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}
	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	d := Default()
	v.SetDefault("strategies.lattice", d.Strategies.Lattice)
	v.SetDefault("strategies.stream", d.Strategies.Stream)
	v.SetDefault("strategies.text_only", d.Strategies.TextOnly)
	v.SetDefault("strategies.merge_lattice", d.Strategies.MergeLattice)
	v.SetDefault("strategies.hybrid", d.Strategies.Hybrid)
	v.SetDefault("strategies.text_alignment", d.Strategies.TextAlignment)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("map_format", d.MapFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("csv_bom", d.CSVBOM)
	v.SetDefault("write_retries", d.WriteRetries)

	v.SetEnvPrefix("TABLEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("tablemap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.tablemap")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		Logger.Debug("loaded config file", "path", v.ConfigFileUsed())
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// Viper exposes the underlying instance so commands can bind flags.
func (cm *Manager) Viper() *viper.Viper { return cm.v }

// Reload re-reads viper state, e.g. after flags were bound.
func (cm *Manager) Reload() (*Config, error) {
	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.mu.Lock()
	cm.config = cfg
	cm.mu.Unlock()
	return cfg, nil
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. An invalid edit is
// logged and the previous configuration stays in effect.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			Logger.Error("config reload failed", "path", e.Name, "err", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		Logger.Info("config reloaded", "path", e.Name)
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	header := []byte("# tablemap configuration\n# Every key can be overridden with a TABLEMAP_ environment variable,\n# e.g. TABLEMAP_STRATEGIES_STREAM=false.\n\n")
	return storage.WriteFileAtomic(path, append(header, data...), 0644, storage.DefaultAttempts)
}
