// Command dormdashctl is the operator CLI for DormDash maintenance tasks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xenking/dormdash/internal/storage/postgres"
)

var (
	databaseURL string
	verbose     bool

	lg = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "dormdashctl",
	Short:         "DormDash operator CLI",
	Long:          "dormdashctl runs maintenance tasks against the DormDash database: rating repair and kitchen board inspection.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		l, err := cfg.Build()
		if err != nil {
			return errors.Wrap(err, "build logger")
		}
		lg = l
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = lg.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Ratings
	ratingsCmd.AddCommand(ratingsRecomputeCmd)
	rootCmd.AddCommand(ratingsCmd)

	// Orders
	ordersCmd.AddCommand(ordersBoardCmd)
	rootCmd.AddCommand(ordersCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect opens the pool for commands that need the database.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	url := databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
	}
	lg.Debug("Connecting to database")
	pool, err := postgres.NewPool(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	return pool, nil
}
