package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/bugboard/internal/models"
	"github.com/joescharf/bugboard/internal/output"
)

var commentAuthor string

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Read and add bug comments",
}

var commentListCmd = &cobra.Command{
	Use:     "list <bug-id>",
	Aliases: []string{"ls"},
	Short:   "List comments on a bug, oldest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentListRun(cmd.Context(), args[0])
	},
}

var commentAddCmd = &cobra.Command{
	Use:   "add <bug-id> <text...>",
	Short: "Comment on a bug",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentAddRun(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

func init() {
	commentAddCmd.Flags().StringVar(&commentAuthor, "author", "", "Comment author (default from defaults.reporter)")
	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentAddCmd)
	rootCmd.AddCommand(commentCmd)
}

func commentListRun(ctx context.Context, raw string) error {
	id, err := parseBugID(raw)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	comments, err := s.ListCommentsByBug(ctx, id)
	if err != nil {
		return fmt.Errorf("list comments: %w", err)
	}
	if len(comments) == 0 {
		ui.Info("No comments on bug #%d.", id)
		return nil
	}
	for _, c := range comments {
		fmt.Fprintf(ui.Out, "%s  %s\n  %s\n", output.Cyan(c.Author), c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Content)
	}
	return nil
}

func commentAddRun(ctx context.Context, raw, content string) error {
	id, err := parseBugID(raw)
	if err != nil {
		return err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("comment text is empty")
	}
	s, err := getStore()
	if err != nil {
		return err
	}
	if _, err := s.GetBug(ctx, id); err != nil {
		return err
	}

	author := commentAuthor
	if author == "" {
		author = viper.GetString("defaults.reporter")
	}
	if dryRun {
		ui.DryRunMsg("Would comment on bug #%d as %s: %s", id, author, content)
		return nil
	}

	c := &models.Comment{BugID: id, Author: author, Content: content}
	if err := s.CreateComment(ctx, c); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	ui.Success("Commented on bug #%d", id)
	return nil
}
