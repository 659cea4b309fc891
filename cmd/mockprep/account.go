package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/model"
)

var (
	registerName     string
	registerEmail    string
	registerTelegram string
)

var stdin = bufio.NewReader(os.Stdin)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <email-or-telegram>",
		Short: "Sign in and store the access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				profile, err := a.auth.Login(ctx, args[0], password)
				if err != nil {
					return fmt.Errorf("login failed: %s", authMessage(err))
				}
				return printProfile(cmd.OutOrStdout(), profile)
			})
		},
	}
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			repeat, err := readPassword("Repeat password: ")
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				profile, err := a.auth.Register(ctx, auth.RegisterInput{
					Name:             registerName,
					Email:            registerEmail,
					TelegramUsername: registerTelegram,
					Password:         password,
					RepeatPassword:   repeat,
				})
				if err != nil {
					return fmt.Errorf("registration failed: %s", authMessage(err))
				}
				return printProfile(cmd.OutOrStdout(), profile)
			})
		},
	}
	cmd.Flags().StringVar(&registerName, "name", "", "display name (required)")
	cmd.Flags().StringVar(&registerEmail, "email", "", "email address (required)")
	cmd.Flags().StringVar(&registerTelegram, "telegram", "", "telegram username (optional)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.auth.Logout(ctx); err != nil {
					return fmt.Errorf("failed to log out: %w", err)
				}
				if a.interview.Phase() != model.PhaseIdle {
					if err := a.interview.LoggedOut(ctx); err != nil {
						logErrf("failed to update saved interview: %v\n", err)
					}
				}
				logErrln("Signed out.")
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and remaining credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				profile, err := a.auth.Refresh(ctx)
				if err != nil {
					return errors.New(authMessage(err))
				}
				a.interview.SyncCredits(ctx, profile)
				return printProfile(cmd.OutOrStdout(), profile)
			})
		},
	}
}

func printProfile(w io.Writer, p *model.UserProfile) error {
	telegram := "-"
	if p.TelegramUsername != nil && *p.TelegramUsername != "" {
		telegram = "@" + strings.TrimPrefix(*p.TelegramUsername, "@")
	}
	trial := "used"
	if p.TrialQuestionFlag {
		trial = "available"
	}
	_, err := fmt.Fprintf(w, "Name:      %s\nEmail:     %s\nTelegram:  %s\nTrial:     %s\nPaid left: %d\n",
		p.Name, p.Email, telegram, trial, p.PaidQuestionsLeft)
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func authMessage(err error) string {
	var lengthErr *auth.PasswordLengthError
	switch {
	case errors.As(err, &lengthErr):
		return lengthErr.Error()
	case errors.Is(err, auth.ErrNotAuthenticated):
		return "not signed in, run: mockprep login <email>"
	case errors.Is(err, auth.ErrSessionExpired):
		return "session expired, run: mockprep login <email>"
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrEmailRequired),
		errors.Is(err, auth.ErrNameRequired),
		errors.Is(err, auth.ErrLoginRequired):
		return err.Error()
	default:
		return api.Message(err)
	}
}

// readPassword prompts on stderr and reads without echo from a terminal, or
// a single line from piped input.
func readPassword(prompt string) (string, error) {
	logErrf("%s", prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		logErrln()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
