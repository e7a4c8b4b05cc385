package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/compiler"
)

func createCompilerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compiler",
		Short: "Compiler management commands",
	}

	cmd.AddCommand(createCompilerInstallCmd())
	cmd.AddCommand(createCompilerWhichCmd())

	return cmd
}

func createCompilerInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Download a solc release build",
		Long: `Download a static solc build from binaries.soliditylang.org, check its
checksum and install it as <solc dir>/solc-<version>.

The version defaults to the project's pinned compiler version.

EXAMPLES:
  contraship compiler install
  contraship compiler install 0.8.24
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version := ""
			if len(args) == 1 {
				version = args[0]
			}
			return runCompilerInstall(cmd.Context(), cmd.OutOrStdout(), version)
		},
	}

	return cmd
}

func createCompilerWhichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "which",
		Short: "Show which solc binary builds will use",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompilerWhich(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func runCompilerInstall(ctx context.Context, out io.Writer, version string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if version == "" {
		version = cfg.Compiler.Version
	}

	path, err := compiler.NewInstaller(cfg.Compiler.SolcDir, logger).Install(ctx, version)
	if err != nil {
		return fmt.Errorf("installing solc %s: %w", version, err)
	}

	fmt.Fprintln(out, path)
	return nil
}

func runCompilerWhich(ctx context.Context, out io.Writer) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	solc, err := compiler.Resolve(ctx, cfg.Compiler, logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (%s)\n", solc.Path(), cfg.Compiler.Version)
	return nil
}
