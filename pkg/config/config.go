// Package config provides the loader for bsnode's configuration record. It
// is versioned so that applications can depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bsnode/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Database sizes and locates the store.
type Database struct {
	Dir          string         `mapstructure:"dir" yaml:"dir"`
	CacheEntries int            `mapstructure:"cache_entries" yaml:"cache_entries"`
	BucketCounts map[string]int `mapstructure:"bucket_counts" yaml:"bucket_counts"`
}

// Node sizes validator threads and concurrency caps for the external node
// collaborator.
type Node struct {
	ValidatorThreads int `mapstructure:"validator_threads" yaml:"validator_threads"`
	MaxConcurrency   int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// Network carries peer settings.
type Network struct {
	ListenAddr     string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	MaxPeers       int      `mapstructure:"max_peers" yaml:"max_peers"`
	BootstrapPeers []string `mapstructure:"bootstrap_peers" yaml:"bootstrap_peers"`
}

// Log carries level toggles, paths and rotation sizing.
type Log struct {
	Dir         string `mapstructure:"dir" yaml:"dir"`
	BudgetBytes int64  `mapstructure:"budget_bytes" yaml:"budget_bytes"`
	EnabledAll  bool   `mapstructure:"enabled_all" yaml:"enabled_all"`
}

// Server carries per-interface bind addresses and HTTP options.
type Server struct {
	HTTPAddr        string `mapstructure:"http_addr" yaml:"http_addr"`
	EnvPrefix       string `mapstructure:"env_prefix" yaml:"env_prefix"`
	ConsoleCloseKey string `mapstructure:"console_close_key" yaml:"console_close_key"`
}

// Bitcoin carries consensus parameters, genesis and checkpoints.
type Bitcoin struct {
	Network          string `mapstructure:"network" yaml:"network"`
	GenesisHash      string `mapstructure:"genesis_hash" yaml:"genesis_hash"`
	EstimatorBins    int    `mapstructure:"estimator_bins" yaml:"estimator_bins"`
	EstimatorTargets int    `mapstructure:"estimator_targets" yaml:"estimator_targets"`
	DecayHalfLife    int    `mapstructure:"decay_half_life" yaml:"decay_half_life"`
}

// Config is the process-wide configuration record, constructed
// once at startup and treated as immutable thereafter.
type Config struct {
	// Run-mode flags; selection precedence among
	// them is resolved by internal/executor, not by this package.
	Help        bool   `mapstructure:"help" yaml:"help"`
	Version     bool   `mapstructure:"version" yaml:"version"`
	Hardware    bool   `mapstructure:"hardware" yaml:"hardware"`
	Settings    bool   `mapstructure:"settings" yaml:"settings"`
	NewStore    bool   `mapstructure:"newstore" yaml:"newstore"`
	Backup      bool   `mapstructure:"backup" yaml:"backup"`
	Restore     bool   `mapstructure:"restore" yaml:"restore"`
	Flags       bool   `mapstructure:"flags" yaml:"flags"`
	Information bool   `mapstructure:"information" yaml:"information"`
	Slabs       bool   `mapstructure:"slabs" yaml:"slabs"`
	Buckets     bool   `mapstructure:"buckets" yaml:"buckets"`
	Collisions  bool   `mapstructure:"collisions" yaml:"collisions"`
	Test        string `mapstructure:"test" yaml:"test"`
	Write       string `mapstructure:"write" yaml:"write"`

	ConfigPath string `mapstructure:"config_path" yaml:"config_path"`

	Database Database `mapstructure:"database" yaml:"database"`
	Node     Node     `mapstructure:"node" yaml:"node"`
	Network  Network  `mapstructure:"network" yaml:"network"`
	Log      Log      `mapstructure:"log" yaml:"log"`
	Server   Server   `mapstructure:"server" yaml:"server"`
	Bitcoin  Bitcoin  `mapstructure:"bitcoin" yaml:"bitcoin"`
}

// ZeroHash is the default value of the Test/Write hashes.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

func defaults() Config {
	return Config{
		Database: Database{Dir: "./data", CacheEntries: 4096},
		Node:     Node{ValidatorThreads: 4, MaxConcurrency: 8},
		Network:  Network{ListenAddr: "0.0.0.0:8333", MaxPeers: 125},
		Log:      Log{Dir: "./logs", BudgetBytes: 64 << 20, EnabledAll: true},
		Server:   Server{HTTPAddr: "0.0.0.0:8080", EnvPrefix: "BS", ConsoleCloseKey: "c"},
		Bitcoin:  Bitcoin{Network: "mainnet", EstimatorBins: 10, EstimatorTargets: 4, DecayHalfLife: 24},
	}
}

// AppConfig holds the configuration loaded via Load.
var AppConfig Config

// Load resolves configFile (optional, empty means no file), an optional
// .env file and the process environment, and flags already registered on
// flagSet into a Config, applying the documented override order:
// command-line overrides file values, which override environment.
func Load(configFile string, flagSet *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	cfg := defaults()
	v.SetEnvPrefix(cfg.Server.EnvPrefix)

	_ = godotenv.Load() // optional local .env; absence is not an error

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("load config %s", configFile))
		}
	}

	v.AutomaticEnv()
	if flagSet != nil {
		if err := v.BindPFlags(flagSet); err != nil {
			return nil, utils.Wrap(err, "bind flags")
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	AppConfig = cfg
	return &cfg, nil
}

// LoadFromEnv loads configuration without flags: from the file named by
// BS_CONFIG_PATH (no file when it is unset), an optional .env file, the
// process environment and the compiled-in defaults.
func LoadFromEnv() (*Config, error) {
	path := utils.EnvOrDefault("BS_CONFIG_PATH", "")
	return Load(path, nil)
}
