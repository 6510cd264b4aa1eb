package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"jobmatchly/internal/domain/model"

	"github.com/spf13/cobra"
)

func newSeedUserCmd(g *globalFlags) *cobra.Command {
	var email, name string
	var credits int64
	cmd := &cobra.Command{
		Use:     "seed-user",
		Short:   "Create a user, or fetch it when the email exists",
		Example: `  jobmatchctl seed-user --email ada@example.com --name Ada --credits 20`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(email) == "" {
				return fmt.Errorf("--email is required")
			}
			if credits < 0 {
				return fmt.Errorf("--credits must not be negative")
			}
			return withBackend(cmd, g, func(ctx context.Context, b *backend) error {
				u, created, err := b.Users.RegisterOrFetch(ctx, email, name)
				if err != nil {
					return err
				}
				balance := u.Credits
				if credits > 0 {
					balance, err = b.Credits.AddCredits(ctx, u.ID, credits, model.LedgerGrant, "seed")
					if err != nil {
						return err
					}
				}
				verb := "existing"
				if created {
					verb = "created"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s user %s <%s> balance=%d\n", verb, u.ID, u.Email, balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().Int64Var(&credits, "credits", 0, "extra credits granted after signup")
	return cmd
}

func newGrantCmd(g *globalFlags) *cobra.Command {
	var typ, reference string
	cmd := &cobra.Command{
		Use:   "grant <user-id> <credits>",
		Short: "Apply a signed credit delta to a user",
		Long: `Apply a signed credit delta and record it in the ledger. Negative values
are allowed, but the database rejects any that would take the balance below zero.`,
		Example: `  jobmatchctl grant 01J... 50 --reference support-1234
  jobmatchctl grant --type refund -- 01J... -5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("credits: %w", err)
			}
			t, err := parseLedgerType(typ)
			if err != nil {
				return err
			}
			return withBackend(cmd, g, func(ctx context.Context, b *backend) error {
				balance, err := b.Credits.AddCredits(ctx, args[0], n, t, reference)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "user %s balance=%d\n", args[0], balance)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(model.LedgerGrant), "ledger entry type (grant, refund, purchase, signup); spends go through the API")
	cmd.Flags().StringVar(&reference, "reference", "cli", "ledger reference")
	return cmd
}

func parseLedgerType(s string) (model.LedgerEntryType, error) {
	t := model.LedgerEntryType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case model.LedgerGrant, model.LedgerRefund, model.LedgerPurchase, model.LedgerSignup:
		return t, nil
	case "":
		return model.LedgerGrant, nil
	}
	return "", fmt.Errorf("unknown ledger type %q", s)
}

func newFinalizeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize <purchase-id>",
		Short: "Grant a PAID purchase's credits if not done yet",
		Long: `Finalize is idempotent: running it on a purchase that was already credited
reports already_credited and changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, g, func(ctx context.Context, b *backend) error {
				res, err := b.Purchases.Finalize(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "purchase %s status=%s outcome=%s\n", res.Purchase.ID, res.Purchase.Status, res.Outcome)
				if res.Balance != 0 {
					fmt.Fprintf(out, "user %s balance=%d\n", res.Purchase.UserID, res.Balance)
				}
				return nil
			})
		},
	}
}

func newReconcileCmd(g *globalFlags) *cobra.Command {
	var payments bool
	cmd := &cobra.Command{
		Use:   "reconcile [user-id...]",
		Short: "Compare balances with their ledgers",
		Long: `Compare each user's cached balance with the sum of their ledger and
report drift. Nothing is repaired. With --payments, first run one pass of the
stale purchase reconciler.`,
		Example: `  jobmatchctl reconcile 01J... 01K...
  jobmatchctl reconcile --payments`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !payments {
				return fmt.Errorf("pass at least one user id or --payments")
			}
			return withBackend(cmd, g, func(ctx context.Context, b *backend) error {
				out := cmd.OutOrStdout()
				if payments {
					rep := b.ReconcilePayments(ctx)
					fmt.Fprintf(out, "payments polled=%d settled=%d finalized=%d errors=%d\n",
						rep.Polled, rep.Settled, rep.Finalized, rep.Errors)
				}
				drifted := 0
				for _, id := range args {
					rec, err := b.Credits.Reconcile(ctx, id)
					if err != nil {
						return fmt.Errorf("reconcile %s: %w", id, err)
					}
					state := "ok"
					if !rec.Consistent() {
						state = "DRIFT"
						drifted++
					}
					fmt.Fprintf(out, "user %s balance=%d ledger=%d drift=%d %s\n", rec.UserID, rec.Balance, rec.LedgerSum, rec.Drift, state)
					if sum, err := b.Credits.Summary(ctx, id); err == nil && sum != nil {
						fmt.Fprintf(out, "  %s\n", formatByType(sum.ByType))
					}
				}
				if drifted > 0 {
					return fmt.Errorf("%d user(s) with ledger drift", drifted)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&payments, "payments", false, "also poll stale PENDING purchases and finalize PAID ones")
	return cmd
}

func formatByType(m map[model.LedgerEntryType]int64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[model.LedgerEntryType(k)]))
	}
	return strings.Join(parts, " ")
}
