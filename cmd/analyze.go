package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bugspotter/intelligence/internal/normalize"
)

var analyzeFile string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bug_id>",
	Short: "Analyze a bug report and store its embedding",
	Long: `Read a bug report as JSON, generate its embedding and store it.

The report is read from --file, or from stdin when no file is given:

  intelligence analyze bug-123 --file report.json
  cat report.json | intelligence analyze bug-123

The report format matches the analyze API endpoint:
  {"title": "...", "description": "...", "console_logs": [...],
   "network_logs": [...], "metadata": {...}}`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "bug report JSON file (default stdin)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	bugID := args[0]

	var data []byte
	var err error
	if analyzeFile != "" {
		data, err = os.ReadFile(analyzeFile)
		if err != nil {
			return fmt.Errorf("reading report file: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading report from stdin: %w", err)
		}
	}

	var report normalize.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("parsing report JSON: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	defer c.Store.Close()

	result, err := c.Engine.AnalyzeAndStore(cmd.Context(), bugID, report)
	if err != nil {
		return fmt.Errorf("analyzing bug: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (embedding generated: %t)\n",
		result.BugID, result.EmbeddingGenerated)
	return nil
}
