package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/mockprep/internal/config"
	"github.com/verte-zerg/mockprep/internal/historyui"
	"github.com/verte-zerg/mockprep/internal/model"
	"github.com/verte-zerg/mockprep/internal/report"
	"github.com/verte-zerg/mockprep/internal/store"
)

var (
	historyTopic       string
	historySince       string
	historyLast        int
	historyFormat      string
	historyInteractive bool
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past interview reports",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historyTopic, "topic", "", "topic filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N interviews")
	cmd.Flags().StringVar(&historyFormat, "format", string(report.FormatTable), "output format: table, json or yaml")
	cmd.Flags().BoolVarP(&historyInteractive, "interactive", "i", false, "browse history in a TUI")
	return cmd
}

func historyFilter(topic, since string, last int) (model.HistoryFilter, error) {
	filter := model.HistoryFilter{Topic: strings.TrimSpace(topic), Last: last}
	if last < 0 {
		return model.HistoryFilter{}, fmt.Errorf("--last must be >= 0")
	}
	if since != "" {
		parsed, err := time.ParseInLocation("2006-01-02", since, time.Local)
		if err != nil {
			return model.HistoryFilter{}, fmt.Errorf("invalid --since value: %w", err)
		}
		filter.Since = &parsed
	}
	return filter, nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	filter, err := historyFilter(historyTopic, historySince, historyLast)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(historyFormat)
	if err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
	}()

	if historyInteractive {
		program := tea.NewProgram(historyui.NewModel(st, filter), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run history TUI: %w", err)
		}
		return nil
	}

	ctx := context.Background()
	if format != report.FormatTable {
		reports, err := st.ListReports(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		return report.Export(cmd.OutOrStdout(), reports, format)
	}
	hist, err := report.BuildHistory(ctx, st, filter)
	if err != nil {
		return err
	}
	return report.RenderHistory(cmd.OutOrStdout(), hist, time.Now())
}
