// ABOUTME: Read-only commands: feed tree, user info and sync run history
// ABOUTME: None of them change the local message store

package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"greader-sync/models"
)

type feedView struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	Source  string `json:"source,omitempty" yaml:"source,omitempty"`
	HasIcon bool   `json:"has_icon" yaml:"has_icon"`
}

type categoryView struct {
	ID    string     `json:"id" yaml:"id"`
	Title string     `json:"title" yaml:"title"`
	Feeds []feedView `json:"feeds" yaml:"feeds"`
}

type labelView struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Color string `json:"color,omitempty" yaml:"color,omitempty"`
}

type treeView struct {
	Categories []categoryView `json:"categories" yaml:"categories"`
	Feeds      []feedView     `json:"feeds,omitempty" yaml:"feeds,omitempty"`
	Labels     []labelView    `json:"labels,omitempty" yaml:"labels,omitempty"`
}

func newFeedView(n *models.Node) feedView {
	return feedView{ID: n.CustomID, Title: n.Title, Source: n.Source, HasIcon: len(n.Icon) > 0}
}

// viewTree flattens the node arena into nested categories, loose feeds and labels
func viewTree(tree *models.Tree) treeView {
	view := treeView{Categories: []categoryView{}}
	for _, idx := range tree.Children(tree.Root()) {
		node := tree.Node(idx)
		switch node.Kind {
		case models.NodeCategory:
			category := categoryView{ID: node.CustomID, Title: node.Title, Feeds: []feedView{}}
			for _, child := range tree.Children(idx) {
				if feed := tree.Node(child); feed.Kind == models.NodeFeed {
					category.Feeds = append(category.Feeds, newFeedView(feed))
				}
			}
			view.Categories = append(view.Categories, category)
		case models.NodeFeed:
			view.Feeds = append(view.Feeds, newFeedView(node))
		case models.NodeLabels:
			for _, child := range tree.Children(idx) {
				label := tree.Node(child)
				view.Labels = append(view.Labels, labelView{ID: label.CustomID, Title: label.Title, Color: label.Color})
			}
		}
	}
	return view
}

type runHistory []*models.SyncRun

func (h runHistory) tableHeader() []string {
	return []string{"started", "duration", "status", "mode", "feeds", "failed", "messages"}
}

func (h runHistory) tableRows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, run := range h {
		mode := "per-feed"
		if run.GlobalFetch {
			mode = "global"
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			statusMark(run.Status),
			mode,
			strconv.Itoa(run.FeedsTotal),
			strconv.Itoa(run.FeedsFailed),
			strconv.Itoa(run.MessagesSaved),
		})
	}
	return rows
}

var treeCmd = &cobra.Command{
	Use:   "tree <account>",
	Short: "Print the feed tree of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := lookupAccount(deps, args[0])
		if err != nil {
			return err
		}
		tree, err := account.FetchTree(cmd.Context())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		return writeOutput(cmd.OutOrStdout(), format, viewTree(tree))
	},
}

var userInfoCmd = &cobra.Command{
	Use:   "user-info <account>",
	Short: "Print the user info the server reports for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		account, err := lookupAccount(deps, args[0])
		if err != nil {
			return err
		}
		info, err := account.Sync.UserInfo(cmd.Context())
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("output")
		return writeOutput(cmd.OutOrStdout(), format, info)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs <account>",
	Short: "List recent sync cycles of an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, cleanup, err := buildDependencies(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := lookupAccount(deps, args[0]); err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := deps.Runs.ListRecent(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []*models.SyncRun{}
		}

		format, _ := cmd.Flags().GetString("output")
		return writeOutput(cmd.OutOrStdout(), format, runHistory(runs))
	},
}

func init() {
	for _, c := range []*cobra.Command{treeCmd, userInfoCmd} {
		c.Flags().StringP("output", "o", "json", "output format (json or yaml)")
		rootCmd.AddCommand(c)
	}
	runsCmd.Flags().StringP("output", "o", "table", "output format (table, json or yaml)")
	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().Int("limit", 20, "number of runs to show")
}
