package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store statistics",
	Long: `Display aggregate statistics about the bug store: total bugs,
embedded bugs, per-status counts, and database size.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	defer c.Store.Close()

	stats, err := c.Store.GetStats()
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}

	if stats.TotalBugs == 0 {
		fmt.Println("No bugs stored yet.")
		fmt.Println("Run 'intelligence serve' and post bugs to /api/v1/bugs/analyze to get started.")
		return nil
	}

	fmt.Printf("Bugs: %d total, %d with embeddings\n\n", stats.TotalBugs, stats.EmbeddedBugs)

	statuses := make([]string, 0, len(stats.CountByStatus))
	for s := range stats.CountByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	fmt.Fprintln(w, "------\t-----")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%d\n", s, stats.CountByStatus[s])
	}
	w.Flush()

	fmt.Println()
	dbPath := expandHome(cfg.Store.Path)
	if info, err := os.Stat(dbPath); err == nil {
		fmt.Printf("Database: %s (%s)\n", dbPath, formatBytes(info.Size()))
	} else {
		fmt.Printf("Database: %s (size unknown)\n", dbPath)
	}

	return nil
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
