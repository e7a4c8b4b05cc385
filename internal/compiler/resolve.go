package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/validation"
)

// InstalledPath returns where an installed binary for version lives under dir
func InstalledPath(dir, version string) string {
	name := "solc-" + validation.NormalizeVersion(version)
	if os.PathSeparator == '\\' {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}

// Resolve finds the compiler binary for the pinned version and verifies it.
// Lookup order: the explicit solc path, then <solcDir>/solc-<version>, then solc on PATH.
// The version check applies to whichever binary is found.
func Resolve(ctx context.Context, cfg config.CompilerConfig, logger *slog.Logger) (*Solc, error) {
	path, source, err := locate(cfg)
	if err != nil {
		return nil, err
	}

	solc := NewSolc(path, cfg.Version, logger)
	if err := solc.CheckVersion(ctx); err != nil {
		return nil, err
	}

	logger.Debug("resolved compiler", "path", path, "source", source, "version", cfg.Version)
	return solc, nil
}

func locate(cfg config.CompilerConfig) (path, source string, err error) {
	if cfg.SolcPath != "" {
		if _, err := os.Stat(cfg.SolcPath); err != nil {
			return "", "", fmt.Errorf("%w: %s", ErrCompilerNotFound, cfg.SolcPath)
		}
		return cfg.SolcPath, "configured", nil
	}

	if cfg.SolcDir != "" {
		installed := InstalledPath(cfg.SolcDir, cfg.Version)
		if _, err := os.Stat(installed); err == nil {
			return installed, "installed", nil
		}
	}

	if onPath, err := exec.LookPath("solc"); err == nil {
		return onPath, "PATH", nil
	}

	return "", "", fmt.Errorf("%w: no solc %s configured, installed under %s, or on PATH (try --install)",
		ErrCompilerNotFound, cfg.Version, cfg.SolcDir)
}
