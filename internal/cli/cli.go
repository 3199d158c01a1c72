package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/app"
	"github.com/linzen78111/pos2/internal/database"
	"github.com/linzen78111/pos2/internal/migration"
	repositoryorder "github.com/linzen78111/pos2/internal/repository/order"
	"github.com/linzen78111/pos2/internal/seeder"
	serviceorder "github.com/linzen78111/pos2/internal/service/order"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root pos CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "pos",
		Short:         "Point-of-sale order intake service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newNumbersCmd())

	return root
}

// Execute runs the pos CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run", "serve"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Module))
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Storage, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				version, err := mig.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (version %d)\n", version)
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Storage, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	cmd.AddCommand(upCmd, downCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample menu",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Storage, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Menu(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), fx.New(app.Worker))
		},
	})
	return cmd
}

func newNumbersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "numbers",
		Short: "Inspect order numbers",
	}

	var dineType, date string
	next := &cobra.Command{
		Use:   "next",
		Short: "Print the lowest unused order number for a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conns  *database.Connections
				logger *zap.Logger
			)
			opts := fx.Options(app.Storage, fx.Populate(&conns, &logger))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				svc := serviceorder.New(repositoryorder.NewRepository(conns), logger, nil, nil, false)
				n, err := svc.NextOrderNumber(ctx, dineType, date)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n.OrderID)
				return nil
			})
		},
	}
	next.Flags().StringVar(&dineType, "dine-type", "T", "Dine type: D (dine-in) or T (takeout)")
	next.Flags().StringVar(&date, "date", "", "Date as yyyymmdd (default today)")

	cmd.AddCommand(next)
	return cmd
}

func runUntilDone(ctx context.Context, application *fx.App) error {
	if err := application.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case sig := <-application.Wait():
		if sig.ExitCode != 0 {
			defer os.Exit(sig.ExitCode)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
