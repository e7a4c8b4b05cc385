package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/validation"
)

func createVerifyCmd() *cobra.Command {
	var contract string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "verify <target> <file-key> <address>",
		Short: "Verify deployed code matches a committed build",
		Long: `Verify that the code at an address matches a contract of a committed build.

Compares the on-chain runtime code with the artifact's deployed bytecode.
A difference only in the trailing CBOR metadata is reported as a partial
match. When the deployment is in the ledger its verification status is
updated.

EXAMPLES:
  contraship verify Token Token.sol 0x5FbDB2315678afecb367f032d93F642f64180aa3

  # The contract name defaults to the target name
  contraship verify Vault Vault.sol 0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512 --contract TimelockVault
`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], contract, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&contract, "contract", "", "contract name inside the file (default: the target name)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runVerify(ctx context.Context, out io.Writer, target, fileKey, address, contract string, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.Target(target); err != nil {
		return err
	}
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %v", config.ErrUnexpectedParameters, err)
	}
	if contract == "" {
		contract = target
	}

	env, closeEnv, err := connectReadOnly(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEnv()

	result, err := env.Verify(ctx, target, fileKey, contract, common.HexToAddress(address))
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "%s:%s at %s\n", fileKey, contract, result.Address)
	fmt.Fprintf(out, "  Match: %s\n", result.MatchType)
	fmt.Fprintf(out, "  %s\n", result.Message)
	return nil
}
