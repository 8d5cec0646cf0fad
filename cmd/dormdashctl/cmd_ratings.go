package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/xenking/dormdash/internal/domain/rating"
	"github.com/xenking/dormdash/internal/storage/postgres"
)

var recomputeAll bool

var ratingsCmd = &cobra.Command{
	Use:   "ratings",
	Short: "Manage vendor ratings",
}

// dormdashctl ratings recompute
var ratingsRecomputeCmd = &cobra.Command{
	Use:   "recompute [vendor-id...]",
	Short: "Rebuild vendor rating aggregates from stored reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !recomputeAll {
			return errors.New("pass vendor IDs or --all")
		}
		ctx := cmd.Context()

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		ids := args
		if recomputeAll {
			vendors, err := postgres.NewVendorRepository(pool).List(ctx)
			if err != nil {
				return errors.Wrap(err, "list vendors")
			}
			ids = make([]string, 0, len(vendors))
			for _, v := range vendors {
				ids = append(ids, v.ID)
			}
		}

		agg, err := rating.NewAggregator(postgres.NewRatingStore(pool), rating.DefaultMaxAttempts,
			otel.Meter("github.com/xenking/dormdash/cmd/dormdashctl"))
		if err != nil {
			return errors.Wrap(err, "create rating aggregator")
		}
		return recompute(ctx, agg, ids, cmd.OutOrStdout())
	},
}

func init() {
	ratingsRecomputeCmd.Flags().BoolVar(&recomputeAll, "all", false, "recompute every vendor")
}

type recomputer interface {
	Recompute(ctx context.Context, vendorID string) (rating.Stats, error)
}

// recompute repairs each vendor in turn. A failing vendor is logged and
// does not stop the rest.
func recompute(ctx context.Context, r recomputer, ids []string, out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VENDOR\tRATING\tREVIEWS")

	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats, err := r.Recompute(ctx, id)
		if err != nil {
			failed++
			lg.Error("Recompute failed", zap.String("vendor_id", id), zap.Error(err))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", id, stats.Rating.StringFixed(1), stats.TotalReviews)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return errors.Errorf("%d of %d vendors failed", failed, len(ids))
	}
	lg.Info("Ratings recomputed", zap.Int("vendors", len(ids)))
	return nil
}
