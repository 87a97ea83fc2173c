// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run <topic...>",
	Short: "Run one research session and print the literature review",
	Long: `Run plans, retrieves, analyzes, and critiques papers for a topic until
the critic accepts the coverage or the iteration limit is reached, then
prints the generated literature review to stdout. Progress goes to stderr.

Interrupting the run (Ctrl-C) ends the session without a report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	runCmd.Flags().String("output-dir", "", "write report.md, session.yaml, and references.yaml under this directory (default: report.output_dir)")
	runCmd.Flags().Bool("archive", false, "save the session to the SQLite archive (default: archive.enabled)")
	runCmd.Flags().Bool("json", false, "print the full session as JSON instead of the report")
	runCmd.Flags().BoolP("quiet", "q", false, "do not print progress")
	runCmd.Flags().Int("max-iterations", 0, "override orchestrator.max_iterations")

	rootCmd.AddCommand(runCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return fmt.Errorf("topic is required")
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	if n, _ := cmd.Flags().GetInt("max-iterations"); n > 0 {
		a.cfg.Orchestrator.MaxIterations = n
	}
	outputDir, _ := cmd.Flags().GetString("output-dir")
	if outputDir == "" {
		outputDir = a.cfg.Report.OutputDir
	}
	archiveOn, _ := cmd.Flags().GetBool("archive")
	store, err := a.openArchive(archiveOn || a.cfg.Archive.Enabled)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := a.newOrchestrator(ctx)
	if err != nil {
		return err
	}

	quiet, _ := cmd.Flags().GetBool("quiet")
	events := make(chan types.Event, orch.EventBufferSize())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if !quiet {
				fmt.Fprintf(os.Stderr, "[%s] %s\n", ev.Stage, ev.Message)
			}
		}
	}()

	sess := orch.Run(ctx, topic, events)
	close(events)
	wg.Wait()

	// Persist with a fresh context so an interrupted session is still recorded.
	a.persist(context.Background(), sess, store, outputDir)

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(sess); err != nil {
			return err
		}
	}

	if sess.Status != types.StatusCompleted {
		return fmt.Errorf("session %s failed: %s", sess.ID, sess.Error)
	}
	if !jsonOutput {
		fmt.Println(sess.FinalReport)
	}
	fmt.Fprintf(os.Stderr, "\nsession: %s, iterations: %d, coverage: %d/10\n",
		sess.ID, len(sess.Iterations), sess.FinalScore())
	return nil
}
