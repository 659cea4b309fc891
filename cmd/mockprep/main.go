// Package main provides the CLI entrypoint for mockprep.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/mockprep/internal/api"
	"github.com/verte-zerg/mockprep/internal/auth"
	"github.com/verte-zerg/mockprep/internal/config"
	"github.com/verte-zerg/mockprep/internal/interview"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/payment"
	"github.com/verte-zerg/mockprep/internal/store"
	"github.com/verte-zerg/mockprep/internal/tui"
)

const (
	defaultAPIURL    = "http://localhost:8000"
	defaultTimeout   = 90 * time.Second
	defaultTimeLimit = 20
	defaultReturnURL = "https://mockprep.app/payment/return"
	apiURLEnv        = "MOCKPREP_API_URL"
	debugEnv         = "MOCKPREP_DEBUG"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// settings is the resolved configuration shared by every command.
type settings struct {
	APIURL         string
	Timeout        time.Duration
	TestMode       bool
	ReturnURL      string
	Specialization string
	TimeLimit      int
}

var (
	rootAPIURL         string
	rootTimeout        time.Duration
	rootTestMode       bool
	rootReturnURL      string
	rootSpecialization string
	rootTimeLimit      int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mockprep",
		Short:         "Mock interviews for data analysts in the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runInterviewCmd,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootAPIURL, "api-url", defaultAPIURL, "backend base URL (env "+apiURLEnv+")")
	flags.DurationVar(&rootTimeout, "timeout", defaultTimeout, "per-request timeout")
	flags.BoolVar(&rootTestMode, "test-mode", false, "enable test-mode payment completion")
	flags.StringVar(&rootReturnURL, "return-url", defaultReturnURL, "payment return URL")
	rootCmd.Flags().StringVar(&rootSpecialization, "specialization", "", "skip the specialization step with this id")
	rootCmd.Flags().IntVar(&rootTimeLimit, "time-limit", defaultTimeLimit, "soft time limit per task in minutes")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
	rootCmd.AddCommand(newPlansCmd())
	rootCmd.AddCommand(newBuyCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newDevserverCmd())

	return rootCmd
}

// loadSettings layers defaults, the config file, the environment and flags.
func loadSettings(cmd *cobra.Command) (settings, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return settings{}, fmt.Errorf("failed to load config: %w", err)
	}
	return resolveSettings(cmd, fileCfg, os.Getenv(apiURLEnv))
}

func resolveSettings(cmd *cobra.Command, fileCfg config.FileConfig, envURL string) (settings, error) {
	apiURL := rootAPIURL
	if !flagChanged(cmd, "api-url") {
		if fileCfg.API.BaseURL != nil {
			apiURL = *fileCfg.API.BaseURL
		}
		if envURL = strings.TrimSpace(envURL); envURL != "" {
			apiURL = envURL
		}
	}

	timeout := rootTimeout
	if err := applyDurationConfig(cmd, "timeout", &timeout, fileCfg.API.Timeout); err != nil {
		return settings{}, err
	}
	testMode := rootTestMode
	applyBoolConfig(cmd, "test-mode", &testMode, fileCfg.API.TestMode)
	returnURL := rootReturnURL
	applyStringConfig(cmd, "return-url", &returnURL, fileCfg.API.ReturnURL)
	specialization := rootSpecialization
	applyStringConfig(cmd, "specialization", &specialization, fileCfg.Interview.Specialization)
	timeLimit := rootTimeLimit
	applyIntConfig(cmd, "time-limit", &timeLimit, fileCfg.Interview.TimeLimit)

	s := settings{
		APIURL:         strings.TrimSpace(apiURL),
		Timeout:        timeout,
		TestMode:       testMode,
		ReturnURL:      strings.TrimSpace(returnURL),
		Specialization: strings.TrimSpace(specialization),
		TimeLimit:      timeLimit,
	}
	if err := validateConfig(s); err != nil {
		return settings{}, err
	}
	return s, nil
}

// app holds the services wired from settings.
type app struct {
	settings  settings
	store     *store.Store
	client    *api.Client
	auth      *auth.Manager
	interview *interview.Controller
	payments  *payment.Gate
}

func openApp(ctx context.Context, s settings) (*app, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	a := &app{settings: s, store: st}
	a.client = api.NewClient(s.APIURL,
		api.WithTimeout(s.Timeout),
		api.WithUserAgent("mockprep/"+version),
		api.WithTokenSource(func() string { return a.auth.Token() }),
	)
	a.auth = auth.NewManager(a.client, st)
	if err := a.auth.Load(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	state, err := st.LoadInterview(ctx)
	if err != nil {
		logErrf("failed to load saved interview, starting fresh: %v\n", err)
		if cerr := st.ClearInterview(ctx); cerr != nil {
			logErrf("failed to clear saved interview: %v\n", cerr)
		}
		state = model.NewInterviewState()
	}
	a.interview = interview.NewController(state, a.client, st, a.auth,
		interview.WithDefaultTimeLimit(time.Duration(s.TimeLimit)*time.Minute),
	)
	a.payments = payment.NewGate(a.client, payment.BrowserOpener{}, payment.Config{
		TestMode:  s.TestMode,
		ReturnURL: s.ReturnURL,
	})
	return a, nil
}

func (a *app) close() {
	if cerr := a.store.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, s)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

func runInterviewCmd(cmd *cobra.Command, _ []string) error {
	if os.Getenv(debugEnv) != "" {
		path := config.DefaultDebugLogPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := tea.LogToFile(path, "mockprep")
		if err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil {
				logErrf("failed to close debug log: %v\n", cerr)
			}
		}()
	} else {
		log.SetOutput(io.Discard)
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		if v, err := a.store.SchemaVersion(ctx); err != nil {
			log.Printf("failed to read schema version: %v", err)
		} else {
			log.Printf("mockprep %s, db schema %d, api %s", version, v, a.client.BaseURL())
		}
		m := tui.NewModel(tui.Deps{
			Auth:                  a.auth,
			Options:               a.client,
			Interview:             a.interview,
			Payments:              a.payments,
			DefaultSpecialization: a.settings.Specialization,
			RequestTimeout:        a.settings.Timeout,
		})
		program := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop the saved in-progress interview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(config.DefaultDBPath())
			if err != nil {
				return fmt.Errorf("failed to open db: %w", err)
			}
			defer func() {
				if cerr := st.Close(); cerr != nil {
					logErrf("failed to close db: %v\n", cerr)
				}
			}()
			if err := st.ClearInterview(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset interview: %w", err)
			}
			logErrln("Saved interview cleared.")
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil || flagChanged(cmd, name) {
		return
	}
	*target = *value
}

func applyDurationConfig(cmd *cobra.Command, name string, target *time.Duration, value *string) error {
	if value == nil || flagChanged(cmd, name) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(*value))
	if err != nil {
		return fmt.Errorf("invalid config api.%s: %w", name, err)
	}
	*target = d
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# mockprep configuration
# Uncomment a value to enable it. CLI flags override config values.

[api]
# base-url = %q   # Backend URL (env %s overrides)
# timeout = %q                     # Per-request timeout
# test-mode = false                  # Enable test-mode payment completion
# return-url = %q

[interview]
# specialization = "data_analyst"    # Skip the specialization step
# time-limit = %d                    # Soft time limit per task, minutes
`,
		defaultAPIURL,
		apiURLEnv,
		defaultTimeout.String(),
		defaultReturnURL,
		defaultTimeLimit,
	)
}

func validateConfig(s settings) error {
	if s.APIURL == "" {
		return fmt.Errorf("--api-url must not be empty")
	}
	if !strings.HasPrefix(s.APIURL, "http://") && !strings.HasPrefix(s.APIURL, "https://") {
		return fmt.Errorf("--api-url must start with http:// or https://")
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("--timeout must be > 0")
	}
	if s.TimeLimit <= 0 {
		return fmt.Errorf("--time-limit must be > 0")
	}
	if s.ReturnURL == "" {
		return fmt.Errorf("--return-url must not be empty")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
