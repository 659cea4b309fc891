package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/payment"
)

var buyComplete string

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List question packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				plans, err := a.payments.Present().Plans(ctx)
				if err != nil {
					return fmt.Errorf("failed to load plans: %s", api.Message(err))
				}
				if len(plans) == 0 {
					logErrln("No plans available.")
					return nil
				}
				out := cmd.OutOrStdout()
				for _, p := range plans {
					if _, err := fmt.Fprintf(out, "%-12s %-20s %4d questions  %s %s\n",
						p.PlanID, p.Name, p.QuestionsCount,
						humanize.CommafWithDigits(p.Price, 2), p.Currency); err != nil {
						return fmt.Errorf("failed to write output: %w", err)
					}
				}
				return nil
			})
		},
	}
}

func newBuyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy [plan-id]",
		Short: "Buy a question pack, or complete a test payment with --complete",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if buyComplete == "" && len(args) != 1 {
				return errors.New("a plan id is required (see: mockprep plans)")
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if buyComplete != "" {
					return completePayment(ctx, cmd, a, buyComplete)
				}
				pay, err := a.payments.Checkout(ctx, args[0])
				switch {
				case errors.Is(err, payment.ErrCopiedToClipboard):
					logErrln(err.Error())
				case err != nil && pay.ConfirmationURL == "":
					return fmt.Errorf("failed to create payment: %s", api.Message(err))
				case err != nil:
					logErrf("%v\n", err)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Payment:  %s\nOpen:     %s\n", pay.PaymentID, pay.ConfirmationURL); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
				if a.payments.TestMode() {
					logErrf("Test mode: run mockprep buy --complete %s\n", pay.PaymentID)
				} else {
					logErrln("Run mockprep whoami after paying to see your credits.")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&buyComplete, "complete", "", "complete a test-mode payment by id")
	return cmd
}

func completePayment(ctx context.Context, cmd *cobra.Command, a *app, paymentID string) error {
	status, err := a.payments.MockComplete(ctx, paymentID)
	if err != nil {
		if errors.Is(err, payment.ErrTestModeDisabled) {
			return fmt.Errorf("%w (pass --test-mode or set api.test-mode)", err)
		}
		return fmt.Errorf("failed to complete payment: %s", api.Message(err))
	}
	logErrf("Payment %s: %s\n", paymentID, status.Status)
	profile, err := a.auth.Refresh(ctx)
	if err != nil {
		return errors.New(authMessage(err))
	}
	a.interview.SyncCredits(ctx, profile)
	return printProfile(cmd.OutOrStdout(), profile)
}
