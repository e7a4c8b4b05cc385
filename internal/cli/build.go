package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/compiler"
	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/pipeline"
)

func createBuildCmd() *cobra.Command {
	var install bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "build <target>",
		Short: "Compile a build target",
		Long: `Bundle a target's sources, compile them with the pinned solc and commit
the output to <build_dir>/<target>/compiled.json.

Local imports are flattened so every source compiles from one directory.
The previous build is only replaced once compilation succeeds.

EXAMPLES:
  # Build the Token target
  contraship build Token

  # Download the pinned compiler first if it is missing
  contraship build Token --install
`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd.OutOrStdout(), args[0], install, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&install, "install", false, "install the pinned compiler if it is missing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runBuild(ctx context.Context, out io.Writer, target string, install, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.Target(target); err != nil {
		return err
	}

	solc, err := resolveCompiler(ctx, cfg, logger, install)
	if err != nil {
		return err
	}

	env := pipeline.New(cfg, logger)
	env.Compiler = solc
	closeLedger, err := openLedger(ctx, env)
	if err != nil {
		return err
	}
	defer closeLedger()

	result, err := env.Build(ctx, target)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w.String())
	}
	fmt.Fprintf(out, "Built %s with solc %s\n", result.Target, result.CompilerVersion)
	fmt.Fprintf(out, "  Output:    %s\n", result.Dir)
	fmt.Fprintf(out, "  Hash:      %s\n", result.Hash)
	fmt.Fprintf(out, "  Contracts: %d (%d deployable)\n", len(result.Contracts), len(result.Deployable))
	for _, ref := range result.Deployable {
		fmt.Fprintf(out, "    %s\n", ref)
	}
	return nil
}

// resolveCompiler finds the pinned compiler, installing it first when asked
func resolveCompiler(ctx context.Context, cfg *config.Config, logger *slog.Logger, install bool) (*compiler.Solc, error) {
	if install && cfg.Compiler.SolcPath == "" {
		if _, err := compiler.NewInstaller(cfg.Compiler.SolcDir, logger).Install(ctx, cfg.Compiler.Version); err != nil {
			return nil, fmt.Errorf("installing solc %s: %w", cfg.Compiler.Version, err)
		}
	}
	return compiler.Resolve(ctx, cfg.Compiler, logger)
}
