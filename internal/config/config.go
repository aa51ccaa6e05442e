// Package config loads the compressor's runtime configuration from flags,
// environment variables, and an optional config file, layered through
// Viper exactly as the rest of the corpus does it: defaults first, then
// config file, then environment, then explicit flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration for the compression driver and
// its CLI.
type Config struct {
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Log       LogConfig       `mapstructure:"log"`
}

// TokenizerConfig locates the BPE vocabulary/merges document.
type TokenizerConfig struct {
	ConfigPath string `mapstructure:"config_path"`
}

// ChunkingConfig controls the chunked container's chunking policy and
// decode parallelism.
type ChunkingConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	ChunkSize   int  `mapstructure:"chunk_size"`
	OverlapSize int  `mapstructure:"overlap_size"`
	Workers     int  `mapstructure:"workers"` // 0 = runtime.NumCPU()
	Parallel    bool `mapstructure:"parallel"`
}

// LogConfig controls process-wide structured logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the configuration used when no file, environment
// variable, or flag overrides a field.
func DefaultConfig() Config {
	return Config{
		Tokenizer: TokenizerConfig{
			ConfigPath: "tokenizer.json",
		},
		Chunking: ChunkingConfig{
			Enabled:     false,
			ChunkSize:   128,
			OverlapSize: 16,
			Workers:     0,
			Parallel:    true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// flagBinder is the subset of *cobra.Command used to bind persistent
// flags into Viper without importing cobra here.
type flagBinder interface {
	Flags() *pflag.FlagSet
}

// LoadOptions parameterizes Load.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

// RegisterFlags registers the CLI flags that map onto Config fields.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("tokenizer-config-path", defaults.Tokenizer.ConfigPath, "Path to tokenizer vocab/merges JSON")
	fs.Bool("chunking-enabled", defaults.Chunking.Enabled, "Use the chunked container format")
	fs.Int("chunking-chunk-size", defaults.Chunking.ChunkSize, "Tokens per chunk")
	fs.Int("chunking-overlap-size", defaults.Chunking.OverlapSize, "Overlap tokens duplicated at each chunk boundary")
	fs.Int("chunking-workers", defaults.Chunking.Workers, "Parallel decode worker count (0 = NumCPU)")
	fs.Bool("chunking-parallel", defaults.Chunking.Parallel, "Decode chunks in parallel")
	fs.String("log-level", defaults.Log.Level, "Log level: debug|info|warn|error")
}

// Load layers defaults, an optional config file, environment variables
// (prefix LLMC_), and bound flags, in that order of increasing priority,
// and decodes the result into a Config.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("LLMC")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("llmc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("tokenizer.config_path", c.Tokenizer.ConfigPath)
	v.SetDefault("chunking.enabled", c.Chunking.Enabled)
	v.SetDefault("chunking.chunk_size", c.Chunking.ChunkSize)
	v.SetDefault("chunking.overlap_size", c.Chunking.OverlapSize)
	v.SetDefault("chunking.workers", c.Chunking.Workers)
	v.SetDefault("chunking.parallel", c.Chunking.Parallel)
	v.SetDefault("log.level", c.Log.Level)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("tokenizer.config_path", "tokenizer-config-path")
	v.RegisterAlias("chunking.enabled", "chunking-enabled")
	v.RegisterAlias("chunking.chunk_size", "chunking-chunk-size")
	v.RegisterAlias("chunking.overlap_size", "chunking-overlap-size")
	v.RegisterAlias("chunking.workers", "chunking-workers")
	v.RegisterAlias("chunking.parallel", "chunking-parallel")
	v.RegisterAlias("log.level", "log-level")
}
