package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/artifact"
	"github.com/pendergraft/contraship/internal/chain"
	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/deploy"
	"github.com/pendergraft/contraship/internal/pipeline"
)

type deployFlags struct {
	contract   string
	gasPrice   string
	gasLimit   uint64
	timeout    time.Duration
	verify     bool
	jsonOutput bool
}

func createDeployCmd() *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "deploy <target> <constructor-args> <file-key>",
		Short: "Deploy a contract from a committed build",
		Long: `Deploy one contract from a target's committed build.

The constructor arguments are a tuple literal: () for none, (x) for one,
(a, b, ...) for several. Numbers may be bare or quoted; addresses, bytes
and strings are quoted. Arrays use [..] and struct arguments nest (..).

Exactly one transaction is submitted. If the receipt does not arrive in
time the transaction hash is reported and nothing is resubmitted.

EXAMPLES:
  # Deploy Token from Token.sol with an initial supply
  contraship deploy Token '(1000000)' Token.sol

  # Deploy a contract whose name differs from the target
  contraship deploy Vault '("0x5FbDB2315678afecb367f032d93F642f64180aa3", 3600)' Vault.sol --contract TimelockVault

  # Deploy, check the on-chain code and print the record as JSON
  contraship deploy Token '(1000000)' Token.sol --verify --json
`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], args[2], flags)
		},
	}

	cmd.Flags().StringVar(&flags.contract, "contract", "", "contract name inside the file (default: the target name)")
	cmd.Flags().StringVar(&flags.gasPrice, "gas-price", "", "gas price in wei (default: network suggestion)")
	cmd.Flags().Uint64Var(&flags.gasLimit, "gas-limit", 0, "gas limit (default: estimate)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "stop waiting for the receipt after this long (default: RECEIPT_TIMEOUT_SECONDS)")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "compare the deployed code with the artifact")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runDeploy(ctx context.Context, out io.Writer, target, literal, fileKey string, flags deployFlags) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.Target(target); err != nil {
		return err
	}

	req, err := deployRequest(cfg, target, literal, fileKey, flags)
	if err != nil {
		return err
	}
	if flags.timeout > 0 {
		cfg.Deploy.ReceiptTimeout = flags.timeout
	}
	if err := cfg.RequireNetwork(); err != nil {
		return err
	}
	if err := checkDeployable(cfg, logger, req); err != nil {
		return err
	}

	env, closeEnv, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEnv()

	result, err := env.Deploy(ctx, env.Deployer(), req, pipeline.DeployOptions{Verify: flags.verify})
	if err != nil {
		if result != nil && result.Record != nil {
			fmt.Fprintf(os.Stderr, "Transaction %s was submitted and not resubmitted\n", result.Record.TxHash)
		}
		return err
	}

	if flags.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printDeploySummary(out, result)
	return nil
}

// deployRequest validates everything that needs no network access
func deployRequest(cfg *config.Config, target, literal, fileKey string, flags deployFlags) (deploy.Request, error) {
	args, err := deploy.ParseArgs(literal)
	if err != nil {
		return deploy.Request{}, err
	}

	contract := flags.contract
	if contract == "" {
		contract = target
	}

	overrides := deploy.Overrides{GasPrice: cfg.Deploy.GasPrice, GasLimit: cfg.Deploy.GasLimit}
	if flags.gasPrice != "" {
		price, ok := new(big.Int).SetString(flags.gasPrice, 10)
		if !ok || price.Sign() < 0 {
			return deploy.Request{}, fmt.Errorf("%w: invalid --gas-price %q", config.ErrInvalidConfig, flags.gasPrice)
		}
		overrides.GasPrice = price
	}
	if flags.gasLimit > 0 {
		overrides.GasLimit = flags.gasLimit
	}

	return deploy.Request{
		Target:    target,
		FileKey:   fileKey,
		Contract:  contract,
		Args:      args,
		Overrides: overrides,
	}, nil
}

// checkDeployable resolves the contract in the committed build and encodes its
// constructor arguments, so a missing build or bad arguments fail before the
// provider is dialed
func checkDeployable(cfg *config.Config, logger *slog.Logger, req deploy.Request) error {
	a, err := artifact.NewStore(cfg.BuildDir, logger).Read(req.Target)
	if err != nil {
		return err
	}
	out, err := a.Contract(req.FileKey, req.Contract)
	if err != nil {
		return err
	}
	parsed, err := out.ParsedABI()
	if err != nil {
		return err
	}
	_, err = deploy.EncodeConstructor(parsed, req.Args)
	return err
}

// connect builds an Env with a verified provider connection, the signer and the ledger
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Env, func(), error) {
	if err := cfg.RequireNetwork(); err != nil {
		return nil, nil, err
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		return nil, nil, err
	}

	env, closeEnv, err := connectReadOnly(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	env.Signer = signer
	return env, closeEnv, nil
}

// connectReadOnly builds an Env with a verified provider connection and the ledger, without a signer
func connectReadOnly(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Env, func(), error) {
	if cfg.Network.RPC == "" {
		return nil, nil, fmt.Errorf("%w: network.rpc is not set", config.ErrInvalidConfig)
	}

	client, err := chain.Dial(ctx, cfg.Network.RPC, chain.Options{RequestsPerSecond: cfg.Network.RequestsPerSecond}, logger)
	if err != nil {
		return nil, nil, err
	}

	env := pipeline.New(cfg, logger)
	env.Backend = client
	env.ChainID = client.ChainIDValue()

	closeLedger, err := openLedger(ctx, env)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	return env, func() {
		closeLedger()
		client.Close()
	}, nil
}

func printDeploySummary(out io.Writer, result *pipeline.DeployResult) {
	r := result.Record
	fmt.Fprintf(out, "Deployed %s (%s)\n", r.ContractName, r.FileKey)
	fmt.Fprintf(out, "  Args:     %s\n", formatArgs(r.ConstructorArgs))
	fmt.Fprintf(out, "  Owner:    %s\n", r.Deployer)
	fmt.Fprintf(out, "  Tx:       %s\n", r.TxHash)
	fmt.Fprintf(out, "  Address:  %s\n", r.ContractAddress)
	fmt.Fprintf(out, "  Block:    %d\n", r.BlockNumber)
	fmt.Fprintf(out, "  Gas used: %d\n", r.GasUsed)
	fmt.Fprintf(out, "  Chain:    %d\n", r.ChainID)
	if result.Verification != nil {
		fmt.Fprintf(out, "  Verified: %s (%s)\n", result.Verification.MatchType, result.Verification.Message)
	}
	if result.Ledger != nil {
		fmt.Fprintf(out, "  Recorded: %s\n", result.Ledger.ID)
	}
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatArg(a)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatArg(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatArg(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return fmt.Sprint(v)
}
