// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/archive"
	"github.com/pdiddy/research-assistant/internal/report"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse archived research sessions",
	Long: `Sessions reads the SQLite archive that "run --archive" and "serve" write
when archive.enabled is set. Use subcommands to list sessions, show one,
export its report files, or search the papers they retrieved.`,
}

// --- list subcommand ---

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived sessions, newest first",
	RunE:  runSessionsList,
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	store, err := openArchiveForRead()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	list, err := store.List(context.Background(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(list)
	}
	if len(list) == 0 {
		fmt.Println("No archived sessions.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-9s  %-16s  %5s  %5s  %6s  %s\n",
		"ID", "Status", "Started", "Iters", "Score", "Papers", "Topic")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 90))
	for _, s := range list {
		fmt.Fprintf(os.Stdout, "%-8s  %-9s  %-16s  %5d  %5d  %6d  %s\n",
			s.ID, s.Status, s.StartedAt.Format("2006-01-02 15:04"),
			s.Iterations, s.CoverageScore, s.TotalPapers, truncate(s.Topic, 40))
	}
	return nil
}

// --- show subcommand ---

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print an archived session's report",
	Long: `Show prints the literature review of an archived session. With --papers
it lists the papers the session retrieved instead; with --json it prints
the full session record. --export writes the report directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionsShow,
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	store, err := openArchiveForRead()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	sess, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if dir, _ := cmd.Flags().GetString("export"); dir != "" {
		paths, err := report.Write(dir, sess)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "exported %s\n", paths.Dir)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(sess)
	}
	if showPapers, _ := cmd.Flags().GetBool("papers"); showPapers {
		papers, err := store.Papers(ctx, sess.ID)
		if err != nil {
			return err
		}
		printPapers(papers)
		return nil
	}

	if sess.Status != types.StatusCompleted {
		return fmt.Errorf("session %s ended with status %s: %s", sess.ID, sess.Status, sess.Error)
	}
	fmt.Println(sess.FinalReport)
	return nil
}

// --- papers subcommand ---

var sessionsPapersCmd = &cobra.Command{
	Use:   "papers <term>",
	Short: "Search archived papers by title or abstract",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsPapers,
}

func runSessionsPapers(cmd *cobra.Command, args []string) error {
	store, err := openArchiveForRead()
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	papers, err := store.SearchPapers(context.Background(), args[0], limit)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(papers)
	}
	printPapers(papers)
	return nil
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions (0 for all)")
	sessionsListCmd.Flags().Bool("json", false, "output as JSON")

	sessionsShowCmd.Flags().Bool("json", false, "print the full session as JSON")
	sessionsShowCmd.Flags().Bool("papers", false, "list the session's papers instead of the report")
	sessionsShowCmd.Flags().String("export", "", "also write the report directory under this path")

	sessionsPapersCmd.Flags().Int("limit", 20, "maximum number of papers")
	sessionsPapersCmd.Flags().Bool("json", false, "output as JSON")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsPapersCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func openArchiveForRead() (*archive.Store, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.cfg.Archive.Path); err != nil {
		return nil, fmt.Errorf("no archive at %s: %w", a.cfg.Archive.Path, err)
	}
	return archive.Open(a.cfg.Archive.Path)
}

func printPapers(papers []types.Paper) {
	if len(papers) == 0 {
		fmt.Println("No papers found.")
		return
	}
	for _, p := range papers {
		fmt.Fprintf(os.Stdout, "%-14s  %-10s  %s\n", p.ArxivID, p.PublishedDate(), truncate(p.Title, 70))
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
