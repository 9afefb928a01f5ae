package matref

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StorageConfig selects the storage driver of the material store.
type StorageConfig struct {
	// Driver is a registered storage driver name.
	// Default: "memory"
	Driver string `yaml:"driver"`

	// DSN is passed to the driver: a directory for "filesystem",
	// a connection string for "postgres".
	DSN string `yaml:"dsn"`
}

// Config is the complete configuration of a client or server process.
// It is always an explicit value; nothing in the engine reads the environment.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Client: ClientConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultClientTimeout,
		},
		Server: ServerConfig{
			Addr:       DefaultServerAddr,
			PathPrefix: DefaultPathPrefix,
		},
		Storage: StorageConfig{
			Driver: StorageDriverNameMemory,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, NewConfigError(ErrMsgReadConfig, path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, NewConfigError(ErrMsgParseConfig, path, err)
	}
	return config, nil
}

// LoadEnvFile reads KEY=VALUE pairs from .env files without touching the
// process environment. Later files override earlier ones.
func LoadEnvFile(paths ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, path := range paths {
		values, err := godotenv.Read(path)
		if err != nil {
			return nil, NewConfigError(ErrMsgReadEnvFile, path, err)
		}
		for k, v := range values {
			env[k] = v
		}
	}
	return env, nil
}

// EnvFromOS collects the MATREF_* variables of the process environment.
func EnvFromOS() map[string]string {
	env := make(map[string]string)
	for _, name := range configEnvNames {
		if value, ok := os.LookupEnv(name); ok {
			env[name] = value
		}
	}
	return env
}

// configEnvNames lists every variable ApplyEnv understands
var configEnvNames = []string{
	EnvAPIURL,
	EnvAPIKey,
	EnvTimeout,
	EnvServerAddr,
	EnvPathPrefix,
	EnvServerAPIKey,
	EnvStorageDriver,
	EnvStorageDSN,
}

// ApplyEnv overrides config fields with the values in env.
// Empty values are ignored.
func (c *Config) ApplyEnv(env map[string]string) error {
	set := func(name string, target *string) {
		if value := strings.TrimSpace(env[name]); value != "" {
			*target = value
		}
	}

	set(EnvAPIURL, &c.Client.BaseURL)
	set(EnvAPIKey, &c.Client.APIKey)
	set(EnvServerAddr, &c.Server.Addr)
	set(EnvPathPrefix, &c.Server.PathPrefix)
	set(EnvServerAPIKey, &c.Server.APIKey)
	set(EnvStorageDriver, &c.Storage.Driver)
	set(EnvStorageDSN, &c.Storage.DSN)

	if value := strings.TrimSpace(env[EnvTimeout]); value != "" {
		timeout, err := ParseTimeout(value)
		if err != nil {
			return err
		}
		c.Client.Timeout = timeout
	}
	return nil
}

// ParseTimeout accepts a Go duration ("30s") or a whole number of seconds ("30").
func ParseTimeout(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d, nil
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0, NewConfigError(ErrMsgInvalidTimeout, value, err)
	}
	return time.Duration(seconds) * time.Second, nil
}
