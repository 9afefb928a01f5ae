package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/itsatony/go-matref"
)

// storeFlags are the configuration flags shared by render and serve
type storeFlags struct {
	configPath string
	envFile    string
	apiURL     string
	apiKey     string
	timeout    string
	storage    string
	dsn        string
	verbose    bool
}

func (f *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, FlagConfig, "", "")
	fs.StringVar(&f.configPath, FlagConfigShort, "", "")
	fs.StringVar(&f.envFile, FlagEnvFile, "", "")
	fs.StringVar(&f.apiKey, FlagAPIKey, "", "")
	fs.StringVar(&f.storage, FlagStorage, "", "")
	fs.StringVar(&f.dsn, FlagDSN, "", "")
	fs.BoolVar(&f.verbose, FlagVerbose, false, "")
	fs.BoolVar(&f.verbose, FlagVerboseShort, false, "")
}

// registerClient adds the flags only a client needs
func (f *storeFlags) registerClient(fs *flag.FlagSet) {
	fs.StringVar(&f.apiURL, FlagAPIURL, "", "")
	fs.StringVar(&f.timeout, FlagTimeout, "", "")
}

// loadConfig builds the configuration in precedence order:
// defaults, config file, env file, process environment, flags.
func (f *storeFlags) loadConfig() (matref.Config, error) {
	config := matref.DefaultConfig()
	if f.configPath != "" {
		loaded, err := matref.LoadConfig(f.configPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	if f.envFile != "" {
		env, err := matref.LoadEnvFile(f.envFile)
		if err != nil {
			return config, err
		}
		if err := config.ApplyEnv(env); err != nil {
			return config, err
		}
	}
	if err := config.ApplyEnv(matref.EnvFromOS()); err != nil {
		return config, err
	}

	if f.apiURL != "" {
		config.Client.BaseURL = f.apiURL
	}
	if f.apiKey != "" {
		config.Client.APIKey = f.apiKey
		config.Server.APIKey = f.apiKey
	}
	if f.timeout != "" {
		timeout, err := matref.ParseTimeout(f.timeout)
		if err != nil {
			return config, err
		}
		config.Client.Timeout = timeout
	}
	if f.storage != "" {
		config.Storage.Driver = f.storage
	}
	if f.dsn != "" {
		config.Storage.DSN = f.dsn
	}
	return config, nil
}

// newLogger returns a production logger, or a development logger when verbose
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.Sampling = nil
	cfg.DisableStacktrace = true
	return cfg.Build()
}
