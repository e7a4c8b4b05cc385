// Package config loads contraship configuration from a project file and the environment.
package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for a contraship invocation
type Config struct {
	// Path is the project file the configuration was loaded from
	Path string
	// BaseDir is the directory relative source and build paths are resolved against
	BaseDir string

	Targets  map[string]Target
	BuildDir string
	Compiler CompilerConfig
	Network  NetworkConfig
	Signer   SignerConfig
	Deploy   DeployConfig
	Server   ServerConfig
	Storage  StorageConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// Target is a named set of source files compiled together
type Target struct {
	Name string
	// Sources maps logical file name to source path on disk
	Sources map[string]string
}

// SourceNames returns the logical file names in sorted order
func (t Target) SourceNames() []string {
	names := make([]string, 0, len(t.Sources))
	for name := range t.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompilerConfig pins the compiler and its settings
type CompilerConfig struct {
	Version   string
	Optimizer OptimizerConfig
	// SolcPath is an explicit compiler binary; empty means resolve by version
	SolcPath string
	// SolcDir holds installed compiler binaries named solc-<version>
	SolcDir string
}

// OptimizerConfig holds optimizer settings
type OptimizerConfig struct {
	Enabled bool
	Runs    int
}

// NetworkConfig holds RPC settings
type NetworkConfig struct {
	RPC               string
	RequestsPerSecond float64 // 0 disables throttling
}

// SignerConfig holds the deploying account
type SignerConfig struct {
	Address    string
	PrivateKey string
}

// DeployConfig holds transaction and receipt wait settings
type DeployConfig struct {
	GasPrice           *big.Int // nil means use the network suggestion
	GasLimit           uint64   // 0 means estimate
	ReceiptPollInitial time.Duration
	ReceiptPollMax     time.Duration
	ReceiptTimeout     time.Duration // 0 waits until the context is done
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "none", "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool
	// Textfile receives the registry in node_exporter textfile format after one-shot commands
	Textfile string
}

// Load reads the project file at path, or searches the current directory when
// path is empty, then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := Find(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	fc, err := readFile(path)
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}

	cfg := defaults()
	cfg.Path = absPath
	cfg.BaseDir = filepath.Dir(absPath)
	if err := loadDotEnv(filepath.Join(cfg.BaseDir, ".env")); err != nil {
		return nil, err
	}
	fc.apply(cfg)
	applyEnv(cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Target returns the named target or ErrUnexpectedParameters
func (c *Config) Target(name string) (Target, error) {
	t, ok := c.Targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: unknown target %q", ErrUnexpectedParameters, name)
	}
	return t, nil
}

// TargetNames returns configured target names in sorted order
func (c *Config) TargetNames() []string {
	names := make([]string, 0, len(c.Targets))
	for name := range c.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TargetDir returns the build directory of a target
func (c *Config) TargetDir(name string) string {
	return filepath.Join(c.BuildDir, name)
}

func defaults() *Config {
	return &Config{
		Targets:  map[string]Target{},
		BuildDir: "build",
		Compiler: CompilerConfig{
			Optimizer: OptimizerConfig{Enabled: false, Runs: 200},
			SolcDir:   defaultSolcDir(),
		},
		Deploy: DeployConfig{
			ReceiptPollInitial: 500 * time.Millisecond,
			ReceiptPollMax:     5 * time.Second,
		},
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 60,
			IdleTimeout:  120,
		},
		Storage: StorageConfig{
			Type:   "none",
			SQLite: SQLiteConfig{Path: "./data/contraship.db"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Network.RPC = getEnv("CONTRASHIP_RPC_URL", cfg.Network.RPC)
	cfg.Network.RequestsPerSecond = getEnvFloat("RPC_REQUESTS_PER_SECOND", cfg.Network.RequestsPerSecond)
	cfg.Signer.Address = getEnv("CONTRASHIP_SIGNER_ADDRESS", cfg.Signer.Address)
	cfg.Signer.PrivateKey = getEnv("CONTRASHIP_PRIVATE_KEY", cfg.Signer.PrivateKey)
	cfg.BuildDir = getEnv("CONTRASHIP_BUILD_DIR", cfg.BuildDir)
	cfg.Compiler.SolcPath = getEnv("CONTRASHIP_SOLC_PATH", cfg.Compiler.SolcPath)
	cfg.Compiler.SolcDir = getEnv("CONTRASHIP_SOLC_DIR", cfg.Compiler.SolcDir)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Storage.Postgres.URL = getEnv("DATABASE_URL", cfg.Storage.Postgres.URL)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)
	cfg.Storage.Type = getEnv("STORAGE_TYPE", "")
	if cfg.Storage.Type == "" {
		// If DATABASE_URL is set, default to postgres
		if cfg.Storage.Postgres.URL != "" {
			cfg.Storage.Type = "postgres"
		} else {
			cfg.Storage.Type = "none"
		}
	}

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Textfile = getEnv("METRICS_TEXTFILE", cfg.Metrics.Textfile)

	cfg.Deploy.ReceiptPollInitial = getEnvMillis("RECEIPT_POLL_INITIAL_MS", cfg.Deploy.ReceiptPollInitial)
	cfg.Deploy.ReceiptPollMax = getEnvMillis("RECEIPT_POLL_MAX_MS", cfg.Deploy.ReceiptPollMax)
	cfg.Deploy.ReceiptTimeout = time.Duration(getEnvInt("RECEIPT_TIMEOUT_SECONDS", int(cfg.Deploy.ReceiptTimeout/time.Second))) * time.Second
	if v := os.Getenv("GAS_PRICE_WEI"); v != "" {
		if price, ok := new(big.Int).SetString(v, 10); ok {
			cfg.Deploy.GasPrice = price
		}
	}
	cfg.Deploy.GasLimit = uint64(getEnvInt("GAS_LIMIT", int(cfg.Deploy.GasLimit)))

	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
}

func (c *Config) resolvePaths() {
	c.BuildDir = c.resolve(c.BuildDir)
	for name, t := range c.Targets {
		sources := make(map[string]string, len(t.Sources))
		for logical, path := range t.Sources {
			sources[logical] = c.resolve(path)
		}
		c.Targets[name] = Target{Name: name, Sources: sources}
	}
}

func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}

func defaultSolcDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".solc"
	}
	return filepath.Join(home, ".contraship", "solc")
}

// loadDotEnv adds the variables of a project .env file to the environment.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, int(defaultValue/time.Millisecond))) * time.Millisecond
}
