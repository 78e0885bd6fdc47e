// Package cli provides output formatting for the memoryd command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xiy/claude-memory-server/internal/models"
	"github.com/xiy/claude-memory-server/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON, OutputCompact:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, result := range response.Results {
			fmt.Fprintf(w, "%s\t%.4f\t%s\n",
				result.Memory.ID, result.CombinedScore, utils.Truncate(result.Memory.Content, 80))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (mode: %s)\n", response.Total, response.QueryTime, response.Mode)
	if response.Degraded {
		fmt.Fprintln(w, "(semantic ranking unavailable; keyword results only)")
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
}

func writeOneResult(w io.Writer, rank int, result *models.SearchResult) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f (Semantic: %.4f, Text: %.4f)\n",
		rank, result.CombinedScore, result.Similarity, result.TextScore)
	fmt.Fprintf(w, "ID: %s\n", result.Memory.ID)
	if result.Memory.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", result.Memory.Category)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Memory.Content, 200))
}

// WriteClusters writes memory clusters to w in the given format.
func WriteClusters(w io.Writer, clusters []*models.Cluster, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(clusters)
	}
	fmt.Fprintf(w, "\nFound %d cluster(s)\n\n", len(clusters))
	for i, cluster := range clusters {
		fmt.Fprintf(w, "─── Cluster %d (avg similarity %.4f, %d members) ───\n",
			i+1, cluster.AvgSimilarity, len(cluster.Members))
		for _, member := range cluster.Members {
			fmt.Fprintf(w, "  %.4f  %s  %s\n",
				member.Similarity, member.Memory.ID, utils.Truncate(member.Memory.Content, 60))
		}
		fmt.Fprintln(w)
	}
	return nil
}
