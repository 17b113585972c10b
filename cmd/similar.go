package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	similarThreshold float64
	similarLimit     int
)

var similarCmd = &cobra.Command{
	Use:   "similar <bug_id>",
	Short: "Find bugs similar to a stored bug",
	Long: `Search the similarity index for bugs resembling the given bug and
report whether it looks like a duplicate.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().Float64Var(&similarThreshold, "threshold", 0, "similarity threshold override (0 = use config)")
	similarCmd.Flags().IntVar(&similarLimit, "limit", 0, "max results override (0 = use config)")
	rootCmd.AddCommand(similarCmd)
}

func runSimilar(cmd *cobra.Command, args []string) error {
	logger := setupLogger()
	bugID := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c, err := initComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	defer c.Store.Close()

	result, err := c.Engine.FindSimilar(bugID, similarThreshold, similarLimit)
	if err != nil {
		return fmt.Errorf("finding similar bugs: %w", err)
	}

	if len(result.SimilarBugs) == 0 {
		fmt.Printf("No bugs above similarity %.2f.\n", result.ThresholdUsed)
		return nil
	}

	if result.IsDuplicate {
		fmt.Printf("%s looks like a DUPLICATE of %s\n\n", bugID, result.SimilarBugs[0].BugID)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUG\tSIMILARITY\tSTATUS\tTITLE")
	fmt.Fprintln(w, "---\t----------\t------\t-----")
	for _, sb := range result.SimilarBugs {
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", sb.BugID, sb.Similarity, sb.Status, sb.Title)
	}
	w.Flush()

	return nil
}
