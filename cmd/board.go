package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/tracker"
)

var (
	boardQuery  string
	boardStatus string
	boardView   string
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show bugs grouped by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return boardRunWith(cmd.Context(), boardQuery, boardStatus, boardView)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bug counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return statsRun(cmd.Context())
	},
}

func init() {
	boardCmd.Flags().StringVarP(&boardQuery, "query", "q", "", "Search title, description and id")
	boardCmd.Flags().StringVar(&boardStatus, "status", "", "Filter by status: all, todo, in-progress, resolved")
	boardCmd.Flags().StringVar(&boardView, "view", "board", "Layout: board or list")
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(statsCmd)
}

func boardRun(ctx context.Context) error {
	return boardRunWith(ctx, "", "", string(models.ViewBoard))
}

func boardRunWith(ctx context.Context, query, status, view string) error {
	filter, err := models.ParseStatusFilter(status)
	if err != nil {
		return err
	}
	layout, err := models.ParseView(view)
	if err != nil {
		return err
	}
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	t.SetQuery(query)
	t.SetStatusFilter(filter)
	t.SetView(layout)
	return renderView(t.View())
}

func renderView(v tracker.BoardView) error {
	ui.Stats(v.Stats)
	fmt.Fprintln(ui.Out)
	if v.Empty() {
		if v.Query != "" || v.Filter != models.FilterAll {
			ui.Info("No bugs match the current search.")
		} else {
			ui.Info("No bugs yet. Log one with 'bugboard bug add'.")
		}
		return nil
	}
	if v.View == models.ViewList {
		return ui.BugTable(v.Filtered)
	}
	return ui.Board(v.Columns)
}

func statsRun(ctx context.Context) error {
	t, err := getTracker(ctx, uiNotifier())
	if err != nil {
		return err
	}
	ui.Stats(t.View().Stats)
	return nil
}
