// Command jobmatchctl runs operator tasks against the same database and
// gateway the server uses.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"jobmatchly/internal/application"
	"jobmatchly/internal/config"
	"jobmatchly/internal/infra/api"
	"jobmatchly/internal/infra/logging"
	"jobmatchly/internal/infra/sched"
	"jobmatchly/internal/usecase"

	"github.com/spf13/cobra"
)

// backend is the slice of the application the commands drive.
type backend struct {
	Users     usecase.UserUseCase
	Credits   usecase.CreditUseCase
	Purchases usecase.PurchaseUseCase
	// ReconcilePayments runs one pass of the stale purchase reconciler.
	ReconcilePayments func(ctx context.Context) sched.ReconcileReport
	Close             func()
}

// Swapped in tests.
var (
	loadConfig  = config.LoadConfig
	openBackend = func(ctx context.Context, cfg *config.Config) (*backend, error) {
		logger := logging.NewWithWriter(os.Stderr, cfg.Log, cfg.Runtime.Dev)
		app, err := application.New(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		// Finalize queues receipts; Close drains them.
		app.Receipts.Start(context.WithoutCancel(ctx))
		return &backend{
			Users:             app.Users,
			Credits:           app.Credits,
			Purchases:         app.Purchases,
			ReconcilePayments: app.Reconciler.RunOnce,
			Close:             app.Close,
		}, nil
	}
)

type globalFlags struct {
	configPath string
	dev        bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "jobmatchctl",
		Short:         "Operator tools for Jobmatchly",
		Long:          `Operator tools for Jobmatchly: seed users, grant credits, finalize purchases and check ledgers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&g.configPath, "config", "config.yaml", "path to YAML config file")
	root.PersistentFlags().BoolVar(&g.dev, "dev", false, "enable developer mode")

	root.AddCommand(
		newSeedUserCmd(g),
		newGrantCmd(g),
		newFinalizeCmd(g),
		newReconcileCmd(g),
		newAdminTokenCmd(g),
	)
	return root
}

// withBackend loads config, opens the backend and closes it after fn.
func withBackend(cmd *cobra.Command, g *globalFlags, fn func(ctx context.Context, b *backend) error) error {
	cfg, err := loadConfig(g.configPath, g.dev)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(ctx, b)
}

func newAdminTokenCmd(g *globalFlags) *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Print a signed admin bearer token",
		Long: `Print a bearer token for the /api/v1/admin routes, signed with
security.admin_jwt_secret and valid for security.admin_token_ttl.`,
		Example: `  TOKEN=$(jobmatchctl admin-token --subject ops)
  curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/v1/admin/users/<id>/reconcile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(g.configPath, g.dev)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			auth := api.NewAuthManager(cfg.Security.AdminJWTSecret, false, "", cfg.Security.AdminTokenTTL)
			tok, err := auth.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
