package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/dormdash/internal/domain/order"
	"github.com/xenking/dormdash/internal/live"
	"github.com/xenking/dormdash/internal/storage/postgres"
)

var watchBoard bool

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect orders",
}

// dormdashctl orders board
var ordersBoardCmd = &cobra.Command{
	Use:   "board <vendor-id>",
	Short: "Print a vendor's kitchen board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		vendorID := args[0]

		pool, err := connect(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		orders := order.NewService(postgres.NewOrderRepository(pool))
		load := func(ctx context.Context) (order.VendorBuckets, error) {
			list, err := orders.VendorOrders(ctx, vendorID)
			if err != nil {
				return order.VendorBuckets{}, err
			}
			return order.ClassifyVendor(list), nil
		}

		out := cmd.OutOrStdout()
		if !watchBoard {
			b, err := load(ctx)
			if err != nil {
				return errors.Wrap(err, "load board")
			}
			return printBoard(out, b, time.Now())
		}

		broker := live.NewBroker()
		defer broker.Close()
		listener := postgres.NewListener(pool, broker, live.ParseTopics, lg.Named("listener"))

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return listener.Run(ctx)
		})
		g.Go(func() error {
			return watch(ctx, live.Subscribe(broker, live.VendorTopic(vendorID), load), out)
		})
		return g.Wait()
	},
}

func init() {
	ordersBoardCmd.Flags().BoolVarP(&watchBoard, "watch", "w", false, "reprint the board whenever the vendor's orders change")
}

// watch prints every snapshot until ctx is done.
func watch(ctx context.Context, sub *live.Subscription[order.VendorBuckets], out io.Writer) error {
	defer sub.Close()
	for b, err := range sub.Seq(ctx) {
		if err != nil {
			return errors.Wrap(err, "load board")
		}
		now := time.Now()
		fmt.Fprintf(out, "\n--- %s ---\n", now.Format(time.TimeOnly))
		if err := printBoard(out, b, now); err != nil {
			return err
		}
	}
	return nil
}

// printBoard renders the three kitchen stages. History is summarized.
func printBoard(out io.Writer, b order.VendorBuckets, now time.Time) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tORDER\tITEMS\tTOTAL\tAGE")
	for _, stage := range []struct {
		name   string
		orders []order.Order
	}{
		{"received", b.Received},
		{"preparing", b.Preparing},
		{"ready", b.Ready},
	} {
		if len(stage.orders) == 0 {
			fmt.Fprintf(tw, "%s\t-\t\t\t\n", stage.name)
			continue
		}
		for _, o := range stage.orders {
			fmt.Fprintf(tw, "%s\t#%d\t%s\t%s\t%s\n",
				stage.name, o.OrderNumber, summarize(o.Items), o.TotalAmount.StringFixed(2),
				now.Sub(o.CreatedAt).Truncate(time.Second))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "history: %d orders\n", len(b.History))
	return err
}

func summarize(items []order.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}
