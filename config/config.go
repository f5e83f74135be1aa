package config

import (
	"fmt"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap/zapcore"

	"github.com/babylonlabs-io/btc-staking/util"
)

// Constants for config default values
const (
	defaultLogLevel          = zapcore.InfoLevel
	defaultLogFormat         = "auto"
	defaultLogDirname        = "logs"
	defaultLogFilename       = "stakecli.log"
	defaultConfigFileName    = "stakecli.conf"
	defaultParamsFileName    = "global-params.json"
	defaultBTCNetwork        = "signet"
	defaultFeeRate           = 2
	defaultWithdrawalFeeRate = 2
)

// MaxFeeRate bounds the fee rates in sat/vB so a typo cannot drain the
// staker's funds into fees.
const MaxFeeRate = 1000

var (
	//   C:\Users\<username>\AppData\Local\Stakecli on Windows
	//   ~/.stakecli on Linux
	//   ~/Library/Application Support/Stakecli on MacOS
	DefaultStakecliDir = btcutil.AppDataDir("stakecli", false)
)

// Config is the main config of the stakecli command
type Config struct {
	LogLevel  string `long:"loglevel" description:"Logging level for all subsystems" choice:"debug" choice:"info" choice:"warn" choice:"error" choice:"fatal"`
	LogFormat string `long:"logformat" description:"Format of the log lines" choice:"auto" choice:"console" choice:"json" choice:"logfmt"`

	BTCNetwork string `long:"btcnetwork" description:"The bitcoin network the transactions are built for" choice:"mainnet" choice:"testnet3" choice:"signet" choice:"regtest" choice:"simnet"`
	ParamsFile string `long:"paramsfile" description:"Path to the JSON file holding the versioned staking parameters"`

	FeeRate           int64 `long:"feerate" description:"Fee rate in sat/vB of staking transactions"`
	WithdrawalFeeRate int64 `long:"withdrawalfeerate" description:"Fee rate in sat/vB of withdrawal transactions"`
}

func DefaultConfigWithHome(homePath string) Config {
	cfg := Config{
		LogLevel:          defaultLogLevel.String(),
		LogFormat:         defaultLogFormat,
		BTCNetwork:        defaultBTCNetwork,
		ParamsFile:        ParamsFile(homePath),
		FeeRate:           defaultFeeRate,
		WithdrawalFeeRate: defaultWithdrawalFeeRate,
	}

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func DefaultConfig() Config {
	return DefaultConfigWithHome(DefaultStakecliDir)
}

func CfgFile(homePath string) string {
	return filepath.Join(homePath, defaultConfigFileName)
}

func LogDir(homePath string) string {
	return filepath.Join(homePath, defaultLogDirname)
}

func LogFile(homePath string) string {
	return filepath.Join(LogDir(homePath), defaultLogFilename)
}

func ParamsFile(homePath string) string {
	return filepath.Join(homePath, defaultParamsFileName)
}

// LoadConfig parses the config file under homePath. Options missing from
// the file keep their default value.
func LoadConfig(homePath string) (*Config, error) {
	cfgFile := CfgFile(homePath)
	if !util.FileExists(cfgFile) {
		return nil, fmt.Errorf("specified config file does "+
			"not exist in %s", cfgFile)
	}

	cfg := DefaultConfigWithHome(homePath)
	fileParser := flags.NewParser(&cfg, flags.Default)
	if err := flags.NewIniParser(fileParser).ParseFile(cfgFile); err != nil {
		return nil, err
	}

	cfg.ParamsFile = util.CleanAndExpandPath(cfg.ParamsFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteConfigFile writes cfg with comments and defaults to the config file
// under homePath.
func WriteConfigFile(homePath string, cfg *Config) error {
	fileParser := flags.NewParser(cfg, flags.Default)

	return flags.NewIniParser(fileParser).WriteFile(CfgFile(homePath), flags.IniIncludeComments|flags.IniIncludeDefaults)
}

// Validate checks the given configuration to be sane.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch cfg.LogFormat {
	case "auto", "console", "json", "logfmt":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if _, err := cfg.NetParams(); err != nil {
		return err
	}

	if cfg.ParamsFile == "" {
		return fmt.Errorf("params file must be set")
	}

	if err := validateFeeRate("fee rate", cfg.FeeRate); err != nil {
		return err
	}

	if err := validateFeeRate("withdrawal fee rate", cfg.WithdrawalFeeRate); err != nil {
		return err
	}

	return nil
}

// NetParams maps the configured network name to its chain parameters.
func (cfg *Config) NetParams() (*chaincfg.Params, error) {
	return NetParamsFromName(cfg.BTCNetwork)
}

func NetParamsFromName(network string) (*chaincfg.Params, error) {
	switch network {
	case "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported btc network %q", network)
	}
}

func validateFeeRate(name string, rate int64) error {
	if rate <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, rate)
	}
	if rate > MaxFeeRate {
		return fmt.Errorf("%s must not exceed %d, got %d", name, MaxFeeRate, rate)
	}
	return nil
}
