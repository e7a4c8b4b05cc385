package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ProjectFiles is the search order for project config files
var ProjectFiles = []string{"contraship.toml", "contraship.yaml", "contraship.yml", "config.json"}

// fileConfig is the on-disk project layout shared by the TOML and YAML formats
type fileConfig struct {
	BuildDir string                       `toml:"build_dir" yaml:"build_dir"`
	Targets  map[string]map[string]string `toml:"targets" yaml:"targets"`
	Compiler fileCompiler                 `toml:"compiler" yaml:"compiler"`
	Network  fileNetwork                  `toml:"network" yaml:"network"`
	Signer   fileSigner                   `toml:"signer" yaml:"signer"`
}

type fileCompiler struct {
	Version   string         `toml:"version" yaml:"version"`
	SolcPath  string         `toml:"solc_path" yaml:"solc_path"`
	Optimizer *fileOptimizer `toml:"optimizer" yaml:"optimizer"`
}

type fileOptimizer struct {
	Enabled bool `toml:"enabled" yaml:"enabled" json:"enabled"`
	Runs    int  `toml:"runs" yaml:"runs" json:"runs"`
}

type fileNetwork struct {
	RPC               string  `toml:"rpc" yaml:"rpc"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second"`
}

type fileSigner struct {
	Address    string `toml:"address" yaml:"address"`
	PrivateKey string `toml:"private_key" yaml:"private_key"`
}

// legacyConfig is the config.json layout used by the Python scripts this tool replaces
type legacyConfig struct {
	Contracts map[string]map[string]string `json:"contracts"`
	Compiler  struct {
		Optimizer *fileOptimizer `json:"optimizer"`
	} `json:"compiler"`
	CompilerVersion string `json:"compilerVersion"`
	Network         struct {
		RPC string `json:"rpc"`
	} `json:"network"`
	Owner struct {
		PublicKey  string `json:"publicKey"`
		PrivateKey string `json:"privateKey"`
	} `json:"owner"`
}

func (l *legacyConfig) toFileConfig() *fileConfig {
	fc := &fileConfig{Targets: l.Contracts}
	fc.Compiler.Version = l.CompilerVersion
	fc.Compiler.Optimizer = l.Compiler.Optimizer
	fc.Network.RPC = l.Network.RPC
	fc.Signer.Address = l.Owner.PublicKey
	fc.Signer.PrivateKey = l.Owner.PrivateKey
	return fc
}

// Find returns the first project file present in dir
func Find(dir string) (string, error) {
	for _, name := range ProjectFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: looked for %s", ErrNotFound, strings.Join(ProjectFiles, ", "))
}

func readFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("%w: parsing TOML: %v", ErrInvalidConfig, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML: %v", ErrInvalidConfig, err)
		}
	case ".json":
		var legacy legacyConfig
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON: %v", ErrInvalidConfig, err)
		}
		return legacy.toFileConfig(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, filepath.Ext(path))
	}
	return &fc, nil
}

func (fc *fileConfig) apply(cfg *Config) {
	if fc.BuildDir != "" {
		cfg.BuildDir = fc.BuildDir
	}
	for name, sources := range fc.Targets {
		copied := make(map[string]string, len(sources))
		for logical, path := range sources {
			copied[logical] = path
		}
		cfg.Targets[name] = Target{Name: name, Sources: copied}
	}
	cfg.Compiler.Version = fc.Compiler.Version
	cfg.Compiler.SolcPath = fc.Compiler.SolcPath
	if fc.Compiler.Optimizer != nil {
		cfg.Compiler.Optimizer = OptimizerConfig{
			Enabled: fc.Compiler.Optimizer.Enabled,
			Runs:    fc.Compiler.Optimizer.Runs,
		}
	}
	cfg.Network.RPC = fc.Network.RPC
	cfg.Network.RequestsPerSecond = fc.Network.RequestsPerSecond
	cfg.Signer.Address = fc.Signer.Address
	cfg.Signer.PrivateKey = fc.Signer.PrivateKey
}

// Starter returns a commented TOML project file
func Starter(compilerVersion, rpc string) string {
	return fmt.Sprintf(`# contraship project configuration

build_dir = "build"

[compiler]
version = "%s"

[compiler.optimizer]
enabled = true
runs = 200

[network]
rpc = "%s"
# requests_per_second = 10

[signer]
# address = "0x..."
# The private key is better supplied via CONTRASHIP_PRIVATE_KEY or the interactive prompt.
# private_key = ""

# Each target maps logical file names to source paths.
# [targets.Token]
# "Token.sol" = "contracts/Token.sol"
`, compilerVersion, rpc)
}
