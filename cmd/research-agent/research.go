// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/research"
	"github.com/pdiddy/research-agent/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [question]",
	Short: "Research a question and print a cited answer",
	Long: `Research runs the full loop for one question: query generation, parallel
grounded searches, reflection, and follow-up waves up to --max-loops. Progress
is written to stderr; the answer and its sources go to stdout.

Interrupting with Ctrl-C cancels every outstanding search. Use --archive to
save the run to the local archive for later browsing with "history".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	queries, _ := cmd.Flags().GetInt("queries")
	maxLoops, _ := cmd.Flags().GetInt("max-loops")
	reasoningModel, _ := cmd.Flags().GetString("reasoning-model")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("archive")

	agent, err := newAgent()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := research.Request{
		Messages:                []types.Message{types.HumanMessage(strings.Join(args, " "))},
		InitialSearchQueryCount: queries,
		MaxResearchLoops:        maxLoops,
		ReasoningModel:          reasoningModel,
	}
	if !jsonOutput {
		req.Observer = progressPrinter(os.Stderr)
	}

	res, err := agent.Run(ctx, req)
	if err != nil {
		return err
	}

	acfg, err := archiveConfig()
	if err != nil {
		return err
	}
	if save || acfg.Enabled {
		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Save(context.Background(), res); err != nil {
			return err
		}
		logger.Info("archived run", zap.String("run_id", res.RunID), zap.String("dir", store.Dir()))
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(os.Stdout, res)
	return nil
}

// progressPrinter reports each stage on w.
func progressPrinter(w io.Writer) research.Observer {
	return research.ObserverFunc(func(e research.Event) {
		switch e.Stage {
		case research.StageGenerating:
			fmt.Fprintf(w, "Generated %d queries\n", len(e.Queries))
			for _, q := range e.Queries {
				fmt.Fprintf(w, "  - %s\n", q)
			}
		case research.StageSearching:
			if e.Task == nil {
				return
			}
			if e.Error != "" {
				fmt.Fprintf(w, "Search %d failed: %s (%s)\n", e.Task.ID, e.Task.Query, e.Error)
				return
			}
			fmt.Fprintf(w, "Searched %q: %d sources\n", e.Task.Query, len(e.Sources))
		case research.StageReflecting:
			if e.IsSufficient {
				fmt.Fprintf(w, "Reflection %d: sufficient\n", e.Loop)
				return
			}
			fmt.Fprintf(w, "Reflection %d: %s\n", e.Loop, e.KnowledgeGap)
			for _, q := range e.FollowUpQueries {
				fmt.Fprintf(w, "  - %s\n", q)
			}
		case research.StageFinalizing:
			fmt.Fprintln(w, "Writing answer")
		}
	})
}

func printResult(w io.Writer, res types.Result) {
	fmt.Fprintln(w, res.Answer)
	if len(res.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range res.Sources {
			fmt.Fprintf(w, "  [%d] %s  %s\n", i+1, s.Label, s.Value)
		}
	}
	fmt.Fprintf(w, "\nrun %s: %d loop(s), %d queries, %s\n",
		res.RunID, res.LoopCount, len(res.Queries), res.Finished.Sub(res.Started).Round(time.Millisecond))
}

func init() {
	researchCmd.Flags().Int("queries", 0, "initial search queries (0 = configured number_of_initial_queries)")
	researchCmd.Flags().Int("max-loops", 0, "maximum reflection loops (0 = configured max_research_loops)")
	researchCmd.Flags().String("reasoning-model", "", "model for reflection and the answer (overrides both)")
	researchCmd.Flags().Bool("json", false, "print the result as JSON")
	researchCmd.Flags().Bool("archive", false, "save the run to the archive")

	rootCmd.AddCommand(researchCmd)
}
