package config

import (
	"fmt"

	"github.com/pendergraft/contraship/internal/validation"
)

// Validate checks the loaded configuration for values that can never work.
// Settings only needed by one stage (RPC URL, signer) are checked when that stage runs.
func (c *Config) Validate() error {
	if err := validation.ValidateCompilerVersion(c.Compiler.Version); err != nil {
		return fmt.Errorf("%w: compiler.version: %v", ErrInvalidConfig, err)
	}
	if c.Compiler.Optimizer.Runs < 0 {
		return fmt.Errorf("%w: compiler.optimizer.runs must be >= 0", ErrInvalidConfig)
	}

	for _, name := range c.TargetNames() {
		if err := validation.ValidateTargetName(name); err != nil {
			return fmt.Errorf("%w: targets.%s: %v", ErrInvalidConfig, name, err)
		}
		t := c.Targets[name]
		if len(t.Sources) == 0 {
			return fmt.Errorf("%w: targets.%s has no sources", ErrInvalidConfig, name)
		}
		for _, logical := range t.SourceNames() {
			if err := validation.ValidateSourceName(logical); err != nil {
				return fmt.Errorf("%w: targets.%s.%s: %v", ErrInvalidConfig, name, logical, err)
			}
		}
	}

	if c.Signer.Address != "" {
		if err := validation.ValidateAddress(c.Signer.Address); err != nil {
			return fmt.Errorf("%w: signer.address: %v", ErrInvalidConfig, err)
		}
	}
	if c.Signer.PrivateKey != "" {
		if err := validation.ValidatePrivateKey(c.Signer.PrivateKey); err != nil {
			return fmt.Errorf("%w: signer.private_key: %v", ErrInvalidConfig, err)
		}
	}

	switch c.Storage.Type {
	case "none", "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for postgres storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if c.Deploy.ReceiptPollInitial <= 0 || c.Deploy.ReceiptPollMax < c.Deploy.ReceiptPollInitial {
		return fmt.Errorf("%w: receipt poll intervals must be positive with max >= initial", ErrInvalidConfig)
	}

	return nil
}

// RequireNetwork checks the settings the deploy stage needs
func (c *Config) RequireNetwork() error {
	if c.Network.RPC == "" {
		return fmt.Errorf("%w: network.rpc is not set", ErrInvalidConfig)
	}
	if c.Signer.Address == "" {
		return fmt.Errorf("%w: signer.address is not set", ErrInvalidConfig)
	}
	return nil
}
