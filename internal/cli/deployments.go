package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/deployments/domain"
	"github.com/pendergraft/contraship/internal/deployments/transport"
)

func createDeploymentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deployments",
		Short: "Deployment ledger commands",
	}

	cmd.AddCommand(createDeploymentsListCmd())
	cmd.AddCommand(createDeploymentsInfoCmd())

	return cmd
}

type deploymentListFlags struct {
	target     string
	chainID    int64
	verified   *bool
	limit      int
	cursor     string
	jsonOutput bool
}

func createDeploymentsListCmd() *cobra.Command {
	var flags deploymentListFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded deployments",
		Long: `List deployments recorded in the ledger, newest first.

EXAMPLES:
  # List all deployments
  contraship deployments list

  # Filter by chain
  contraship deployments list --chain-id 1337

  # Filter by target
  contraship deployments list --target Token

  # Show only verified deployments
  contraship deployments list --verified
`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploymentsList(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.target, "target", "", "filter by target")
	cmd.Flags().Int64Var(&flags.chainID, "chain-id", 0, "filter by chain ID")
	cmd.Flags().IntVar(&flags.limit, "limit", 20, "number of items to show")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "output as JSON")

	// Handle --verified flag
	var verifiedFlag bool
	cmd.Flags().BoolVar(&verifiedFlag, "verified", false, "show only verified deployments")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("verified") {
			flags.verified = &verifiedFlag
		}
		return nil
	}

	return cmd
}

func createDeploymentsInfoCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info <chain-id> <address>",
		Short: "Show deployment details",
		Long: `Display detailed information about a recorded deployment.

EXAMPLES:
  contraship deployments info 1337 0x5FbDB2315678afecb367f032d93F642f64180aa3
`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploymentsInfo(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func openDeployments(ctx context.Context) (domain.Service, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := requireLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return domain.NewService(store), func() { store.Close() }, nil
}

func runDeploymentsList(ctx context.Context, out io.Writer, flags deploymentListFlags) error {
	svc, closeStore, err := openDeployments(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := svc.List(ctx, domain.ListFilter{
		Target:   flags.target,
		ChainID:  flags.chainID,
		Verified: flags.verified,
	}, domain.PaginationParams{Limit: flags.limit, Cursor: flags.cursor})
	if err != nil {
		return err
	}

	if flags.jsonOutput {
		resp := transport.DeploymentListResponse{
			Data: make([]transport.DeploymentItem, len(result.Deployments)),
			Pagination: transport.Pagination{
				Limit:      flags.limit,
				HasMore:    result.HasMore,
				NextCursor: result.NextCursor,
			},
		}
		for i, d := range result.Deployments {
			resp.Data[i] = transport.NewDeploymentItem(d)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if len(result.Deployments) == 0 {
		fmt.Fprintln(out, "No deployments found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN\tADDRESS\tTARGET\tCONTRACT\tVERIFIED\tRECORDED")
	for _, d := range result.Deployments {
		verified := "no"
		if d.Verified() {
			verified = d.Verification
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			d.ChainID, d.Address, d.Target, d.ContractName, verified, d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	if result.HasMore {
		fmt.Fprintf(out, "\n(showing %d deployments, more with --cursor %s)\n", len(result.Deployments), result.NextCursor)
	}

	return nil
}

func runDeploymentsInfo(ctx context.Context, out io.Writer, chainArg, address string, jsonOutput bool) error {
	chainID, err := strconv.ParseInt(chainArg, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: invalid chain ID %q", config.ErrUnexpectedParameters, chainArg)
	}

	svc, closeStore, err := openDeployments(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	deployment, err := svc.Get(ctx, chainID, address)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidAddress) {
			return fmt.Errorf("%w: %v", config.ErrUnexpectedParameters, err)
		}
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(transport.NewDeploymentResponse(deployment))
	}

	fmt.Fprintf(out, "Deployment: %s\n", deployment.Address)
	fmt.Fprintf(out, "Chain ID:   %d\n", deployment.ChainID)
	fmt.Fprintf(out, "Target:     %s\n", deployment.Target)
	fmt.Fprintf(out, "Contract:   %s:%s\n", deployment.FileKey, deployment.ContractName)
	fmt.Fprintf(out, "Args:       %s\n", formatArgs(deployment.ConstructorArgs))
	fmt.Fprintf(out, "Tx Hash:    %s\n", deployment.TxHash)
	fmt.Fprintf(out, "Deployer:   %s\n", deployment.DeployerAddress)
	if deployment.BlockNumber > 0 {
		fmt.Fprintf(out, "Block:      %d\n", deployment.BlockNumber)
	}
	if deployment.Verification != "" {
		fmt.Fprintf(out, "Verified:   %s (%s)\n", deployment.Verification, deployment.VerifiedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(out, "Verified:   not checked")
	}
	fmt.Fprintf(out, "Recorded:   %s\n", deployment.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
