package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contraship/internal/config"
	"github.com/pendergraft/contraship/internal/storage"
)

// buildItem is the JSON form of an indexed build
type buildItem struct {
	ID              string `json:"id"`
	Target          string `json:"target"`
	CompilerVersion string `json:"compilerVersion"`
	ArtifactHash    string `json:"artifactHash"`
	ContractCount   int    `json:"contractCount"`
	CreatedAt       string `json:"createdAt"`
}

func toBuildItem(b storage.Build) buildItem {
	return buildItem{
		ID:              b.ID,
		Target:          b.Target,
		CompilerVersion: b.CompilerVersion,
		ArtifactHash:    b.ArtifactHash,
		ContractCount:   b.ContractCount,
		CreatedAt:       b.CreatedAt,
	}
}

func createBuildsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "builds",
		Short: "Build history commands",
	}

	cmd.AddCommand(createBuildsListCmd())
	cmd.AddCommand(createBuildsLatestCmd())

	return cmd
}

func createBuildsListCmd() *cobra.Command {
	var target string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List committed builds",
		Long: `List builds recorded in the ledger, newest first.

EXAMPLES:
  contraship builds list
  contraship builds list --target Token --limit 5
`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildsList(cmd.Context(), cmd.OutOrStdout(), target, limit, jsonOutput)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "filter by target")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of items to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func createBuildsLatestCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "latest <target>",
		Short: "Show the most recent build of a target",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuildsLatest(cmd.Context(), cmd.OutOrStdout(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	return cmd
}

func runBuildsList(ctx context.Context, out io.Writer, target string, limit int, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := requireLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := store.ListBuilds(ctx, target, storage.PaginationParams{Limit: limit})
	if err != nil {
		return fmt.Errorf("listing builds: %w", err)
	}

	if jsonOutput {
		items := make([]buildItem, len(result.Data))
		for i, b := range result.Data {
			items[i] = toBuildItem(b)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(result.Data) == 0 {
		fmt.Fprintln(out, "No builds found")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Create one with: contraship build <target>")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tSOLC\tCONTRACTS\tHASH\tCREATED")
	for _, b := range result.Data {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", b.Target, b.CompilerVersion, b.ContractCount, shortHash(b.ArtifactHash), b.CreatedAt)
	}
	return w.Flush()
}

func runBuildsLatest(ctx context.Context, out io.Writer, target string, jsonOutput bool) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := requireLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := store.LatestBuild(ctx, target)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: no recorded build for target %q", config.ErrUnexpectedParameters, target)
	}
	if err != nil {
		return fmt.Errorf("getting latest build: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(toBuildItem(*b))
	}

	fmt.Fprintf(out, "Target:    %s\n", b.Target)
	fmt.Fprintf(out, "Solc:      %s\n", b.CompilerVersion)
	fmt.Fprintf(out, "Contracts: %d\n", b.ContractCount)
	fmt.Fprintf(out, "Hash:      %s\n", b.ArtifactHash)
	fmt.Fprintf(out, "Created:   %s\n", b.CreatedAt)
	return nil
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
