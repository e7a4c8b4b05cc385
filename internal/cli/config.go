package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/validation"
)

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var output string
	var compilerVersion string
	var rpc string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a project file",
		Long: `Create a contraship.toml project file in the current directory.

The file pins the compiler, names the RPC endpoint and the deploying
account, and lists the build targets.

EXAMPLES:
  # Create a project file with defaults
  contraship config init

  # Pin a compiler and a local node
  contraship config init --compiler-version 0.8.24 --rpc http://127.0.0.1:8545

  # Overwrite an existing project file
  contraship config init --force
`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), output, compilerVersion, rpc, force)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "contraship.toml", "file to write")
	cmd.Flags().StringVar(&compilerVersion, "compiler-version", "0.8.24", "solc version to pin")
	cmd.Flags().StringVar(&rpc, "rpc", "http://127.0.0.1:8545", "JSON-RPC endpoint")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing project file")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after the project file and environment
overrides are applied. The private key is masked.

EXAMPLES:
  contraship config show
  contraship --config deploy/contraship.yaml config show
`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}

	return cmd
}

func runConfigInit(out io.Writer, output, compilerVersion, rpc string, force bool) error {
	if err := validation.ValidateCompilerVersion(compilerVersion); err != nil {
		return fmt.Errorf("%w: --compiler-version: %v", config.ErrUnexpectedParameters, err)
	}

	if !force {
		if _, err := os.Stat(output); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", output)
		}
		if existing, err := config.Find(filepath.Dir(output)); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", existing)
		}
	}

	if err := os.WriteFile(output, []byte(config.Starter(compilerVersion, rpc)), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", output)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Compiler: solc %s\n", compilerVersion)
	fmt.Fprintf(out, "  RPC:      %s\n", rpc)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  1. Add a [targets.<Name>] table to %s\n", output)
	fmt.Fprintln(out, "  2. Run 'contraship build <Name> --install' to compile it")
	fmt.Fprintln(out, "  3. Set signer.address and run 'contraship deploy <Name> () <File.sol>'")

	return nil
}

func runConfigShow(out io.Writer) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "config file\t%s\n", cfg.Path)
	fmt.Fprintf(w, "build_dir\t%s\n", cfg.BuildDir)
	fmt.Fprintf(w, "compiler.version\t%s\n", cfg.Compiler.Version)
	fmt.Fprintf(w, "compiler.optimizer\t%t (runs %d)\n", cfg.Compiler.Optimizer.Enabled, cfg.Compiler.Optimizer.Runs)
	fmt.Fprintf(w, "compiler.solc_path\t%s\n", orNotSet(cfg.Compiler.SolcPath))
	fmt.Fprintf(w, "compiler.solc_dir\t%s\n", cfg.Compiler.SolcDir)
	fmt.Fprintf(w, "network.rpc\t%s\n", orNotSet(cfg.Network.RPC))
	fmt.Fprintf(w, "signer.address\t%s\n", orNotSet(cfg.Signer.Address))
	if cfg.Signer.PrivateKey != "" {
		fmt.Fprintf(w, "signer.private_key\t%s\n", maskKey(cfg.Signer.PrivateKey))
	} else {
		fmt.Fprintln(w, "signer.private_key\t(prompted)")
	}
	fmt.Fprintf(w, "storage\t%s\n", cfg.Storage.Type)
	fmt.Fprintf(w, "receipt poll\t%s to %s\n", cfg.Deploy.ReceiptPollInitial, cfg.Deploy.ReceiptPollMax)
	if cfg.Deploy.ReceiptTimeout > 0 {
		fmt.Fprintf(w, "receipt timeout\t%s\n", cfg.Deploy.ReceiptTimeout)
	} else {
		fmt.Fprintln(w, "receipt timeout\tnone")
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	names := cfg.TargetNames()
	if len(names) == 0 {
		fmt.Fprintln(out, "No targets configured")
		return nil
	}

	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tFILE\tPATH")
	for _, name := range names {
		t := cfg.Targets[name]
		for _, logical := range t.SourceNames() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", name, logical, t.Sources[logical])
		}
	}
	return w.Flush()
}

func orNotSet(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
