// Package app holds process level settings and the logger shared by the
// command line entry point.
package app

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/solfarm/multisig-cli/pkg/solana"
)

// Config contains settings for a single invocation. Values come from flags,
// then MSIG_* environment variables, then defaults.
type Config struct {
	ConfigPath string `mapstructure:"config"`
	Keypair    string `mapstructure:"keypair"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Commitment     string        `mapstructure:"commitment"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`

	// RPCRateLimit caps requests per second to the RPC endpoint. Zero
	// disables the limit.
	RPCRateLimit float64 `mapstructure:"rpc_rate_limit"`

	ComputeUnitPrice uint64 `mapstructure:"compute_unit_price"`
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`
	Memo             string `mapstructure:"memo"`
}

var defaultConfig = Config{
	ConfigPath: "config.yaml",

	LogLevel:  "info",
	LogFormat: "text",

	Commitment:     "confirmed",
	ConfirmTimeout: 60 * time.Second,
	LockTimeout:    10 * time.Second,
}

// flagKeys maps persistent flag names to their setting keys.
var flagKeys = map[string]string{
	"config":             "config",
	"keypair":            "keypair",
	"log-level":          "log_level",
	"log-file":           "log_file",
	"compute-unit-price": "compute_unit_price",
	"memo":               "memo",
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return defaultConfig
}

// NewViper returns a viper instance with defaults and environment bindings
// for every setting.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("config", defaultConfig.ConfigPath)
	v.SetDefault("keypair", defaultConfig.Keypair)
	v.SetDefault("log_level", defaultConfig.LogLevel)
	v.SetDefault("log_format", defaultConfig.LogFormat)
	v.SetDefault("log_file", defaultConfig.LogFile)
	v.SetDefault("commitment", defaultConfig.Commitment)
	v.SetDefault("confirm_timeout", defaultConfig.ConfirmTimeout)
	v.SetDefault("lock_timeout", defaultConfig.LockTimeout)
	v.SetDefault("rpc_rate_limit", defaultConfig.RPCRateLimit)
	v.SetDefault("compute_unit_price", defaultConfig.ComputeUnitPrice)
	v.SetDefault("compute_unit_limit", defaultConfig.ComputeUnitLimit)
	v.SetDefault("memo", defaultConfig.Memo)

	_ = v.BindEnv("config", "MSIG_CONFIG")
	_ = v.BindEnv("keypair", "MSIG_KEYPAIR")
	_ = v.BindEnv("log_level", "MSIG_LOG_LEVEL")
	_ = v.BindEnv("log_format", "MSIG_LOG_FORMAT")
	_ = v.BindEnv("log_file", "MSIG_LOG_FILE")
	_ = v.BindEnv("commitment", "MSIG_COMMITMENT")
	_ = v.BindEnv("confirm_timeout", "MSIG_CONFIRM_TIMEOUT")
	_ = v.BindEnv("lock_timeout", "MSIG_LOCK_TIMEOUT")
	_ = v.BindEnv("rpc_rate_limit", "MSIG_RPC_RATE_LIMIT")
	_ = v.BindEnv("compute_unit_price", "MSIG_COMPUTE_UNIT_PRICE")
	_ = v.BindEnv("compute_unit_limit", "MSIG_COMPUTE_UNIT_LIMIT")

	return v
}

// BindFlags binds the persistent command line flags in flags to v. Flags
// that are not defined are skipped.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return errors.Wrapf(err, "failed to bind flag %s", name)
		}
	}
	return nil
}

// LoadConfig resolves the settings held by v.
func LoadConfig(v *viper.Viper) (Config, error) {
	config := defaultConfig
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, errors.Wrap(err, "failed to unmarshal settings")
	}

	if config.ConfigPath == "" {
		config.ConfigPath = defaultConfig.ConfigPath
	}
	if config.ConfirmTimeout <= 0 {
		return Config{}, errors.Errorf("confirm_timeout must be positive, got %v", config.ConfirmTimeout)
	}
	if config.LockTimeout <= 0 {
		return Config{}, errors.Errorf("lock_timeout must be positive, got %v", config.LockTimeout)
	}
	if config.RPCRateLimit < 0 {
		return Config{}, errors.Errorf("rpc_rate_limit must not be negative, got %v", config.RPCRateLimit)
	}
	if _, err := config.ParseCommitment(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// ParseCommitment returns the configured commitment level.
func (c Config) ParseCommitment() (solana.Commitment, error) {
	return solana.ParseCommitment(strings.ToLower(c.Commitment))
}
