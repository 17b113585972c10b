package notify

import (
	"fmt"
	"math"
	"strings"

	"github.com/bugspotter/intelligence/internal/store"
)

// FormatMatches formats similarity matches as a readable list.
// Example: "- bug-38 (Login crash) — 91% similar"
func FormatMatches(matches []store.SimilarBug) string {
	if len(matches) == 0 {
		return "None found"
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		pct := int(math.Round(m.Similarity * 100))
		parts[i] = fmt.Sprintf("- %s (%s) — %d%% similar", m.BugID, m.Title, pct)
	}
	return strings.Join(parts, "\n")
}

// FormatResolutions lists the recorded resolutions of the matches, so the
// alert tells the reader not just that a fix exists but what it was. Matches
// without a resolution are skipped.
func FormatResolutions(matches []store.SimilarBug) string {
	var parts []string
	for _, m := range matches {
		if m.Resolution == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("- %s: %s", m.BugID, m.Resolution))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n")
}
