package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"LandScout/internal/app"
	"LandScout/internal/domain"
)

var maxItems int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled ingestion and expose metrics until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			return a.Serve(ctx)
		})
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingestion pass now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			created, err := a.Ingest(ctx, maxItems)
			fmt.Fprintf(cmd.OutOrStdout(), "created %d listings\n", created)
			return err
		})
	},
}

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute the score of every stored listing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			updated, err := a.Engine().RescoreAll(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "rescored %d listings\n", updated)
			return err
		})
	},
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Inspect and change scoring weights",
}

var weightsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every criterion with its weight",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			criteria, err := a.Engine().Criteria(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CRITERION\tWEIGHT\tACTIVE\tUPDATED")
			for _, c := range criteria {
				fmt.Fprintf(w, "%s\t%.4g\t%t\t%s\n", c.Name, c.Weight, c.Active, c.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		})
	},
}

var weightsSetCmd = &cobra.Command{
	Use:     "set name=weight [name=weight...]",
	Short:   "Set weights and rescore every listing",
	Example: "  landscout weights set transport=0.3 legal_status=0.1",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weights, err := parseWeights(args)
		if err != nil {
			return err
		}
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			updated, err := a.Engine().SetWeights(ctx, weights)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "weights saved, rescored %d listings\n", updated)
			return nil
		})
	},
}

var weightsDisableCmd = &cobra.Command{
	Use:   "disable name",
	Short: "Deactivate a criterion and rescore every listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := domain.ParseCriterionName(args[0])
		if err != nil {
			return err
		}
		return withApplication(cmd, func(ctx context.Context, a *app.Application) error {
			updated, err := a.Engine().DisableCriterion(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s disabled, rescored %d listings\n", name, updated)
			return nil
		})
	},
}

func init() {
	ingestCmd.Flags().IntVar(&maxItems, "max", 0, "maximum mailbox items to process (0 uses the configured cap)")
	weightsCmd.AddCommand(weightsListCmd, weightsSetCmd, weightsDisableCmd)
}

func parseWeights(args []string) (domain.Weights, error) {
	weights := make(domain.Weights, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=weight, got %q", arg)
		}
		criterion, err := domain.ParseCriterionName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("weight %s: %w", name, err)
		}
		weights[criterion] = weight
	}
	return weights, nil
}
