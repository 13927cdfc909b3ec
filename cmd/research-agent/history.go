// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/internal/archive"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived research runs (list, show, search, export)",
	Long: `History reads the SQLite run archive written by "research --archive" and
by the server when archive.enabled is set.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent runs",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	return listRuns(cmd, archive.QueryOptions{})
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search over archived questions and answers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	return listRuns(cmd, archive.QueryOptions{Query: strings.Join(args, " ")})
}

func listRuns(cmd *cobra.Command, opts archive.QueryOptions) error {
	opts.MaxResults, _ = cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), opts)
	if err != nil {
		return err
	}
	return formatRuns(os.Stdout, runs, jsonOutput)
}

func formatRuns(w io.Writer, runs []archive.Summary, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-20s  %-5s  %-7s  %s\n", "Run", "Started", "Loops", "Sources", "Question")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, r := range runs {
		question := r.Question
		if len(question) > 40 {
			question = question[:37] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-20s  %-5d  %-7d  %s\n",
			r.RunID, r.Started.Format("2006-01-02 15:04:05"), r.LoopCount, r.SourceCount, question)
	}

	fmt.Fprintf(w, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Print one archived run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	yamlOutput, _ := cmd.Flags().GetBool("yaml")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.Get(context.Background(), args[0])
	if err != nil {
		return err
	}

	switch {
	case yamlOutput:
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res)
	case jsonOutput:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Question: %s\n\n", res.Question)
	printResult(os.Stdout, res)
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export archived runs to YAML or JSON",
	Long: `Export writes the archived runs (or those matching --query) to
export.yaml or export.json in the archive directory.`,
	RunE: runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	query, _ := cmd.Flags().GetString("query")

	store, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := archive.QueryOptions{Query: query}
	var path string
	switch format {
	case "yaml":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Exported to %s\n", path)
	return nil
}

func init() {
	for _, c := range []*cobra.Command{historyListCmd, historySearchCmd} {
		c.Flags().Int("limit", 0, "maximum runs to list (0 = archive.max_results)")
		c.Flags().Bool("json", false, "print as JSON")
	}
	historyShowCmd.Flags().Bool("yaml", false, "print as YAML")
	historyShowCmd.Flags().Bool("json", false, "print as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	historyExportCmd.Flags().String("query", "", "export only runs matching this full-text query")

	historyCmd.AddCommand(historyListCmd, historySearchCmd, historyShowCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
