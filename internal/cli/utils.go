// Package cli provides output helpers for the hiddenclasses command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/hiddenclasses/internal/indexer"
	"github.com/hyperjump/hiddenclasses/internal/models"
	"github.com/hyperjump/hiddenclasses/internal/pipeline"
	"github.com/hyperjump/hiddenclasses/internal/storage"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rule = strings.Repeat("=", 60)

// WriteReplies writes the judged replies of one reply run to w.
// The text format ends with a dry-run notice when publish is false.
func WriteReplies(w io.Writer, replies []models.GeneratedReply, publish bool, format OutputFormat) error {
	if format == OutputJSON {
		if replies == nil {
			replies = []models.GeneratedReply{}
		}
		return writeJSON(w, map[string]interface{}{"publish": publish, "replies": replies})
	}

	fmt.Fprintf(w, "Found %d posts\n", len(replies))
	if len(replies) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return nil
	}
	fmt.Fprintf(w, "\n%s\nGENERATED REPLIES\n%s\n", rule, rule)
	for _, r := range replies {
		fmt.Fprintf(w, "\n→ Replying to @%s\n", r.Candidate.Author)
		fmt.Fprintf(w, "Relevance: %.2f\n", r.Judgment.RelevanceScore)
		fmt.Fprintf(w, "Reasoning: %s\n", r.Judgment.Reasoning)
		fmt.Fprintln(w, "Reply:")
		fmt.Fprintln(w, r.Judgment.ResponseText)
		if r.Published != nil {
			fmt.Fprintf(w, "Posted: %s\n", r.Published.URL)
		}
	}
	if !publish {
		fmt.Fprintln(w, "\nDRY RUN - no replies posted.")
		fmt.Fprintln(w, "Run with `--post` to publish replies.")
	}
	return nil
}

// WriteRunResult writes the outcome of one pipeline run to w.
func WriteRunResult(w io.Writer, res *pipeline.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	switch {
	case res.Skipped:
		fmt.Fprintln(w, "No content in the database; nothing to post.")
	case res.Published != nil:
		fmt.Fprintf(w, "Published: %s\n", res.Published.URL)
	case res.Decision != nil:
		fmt.Fprintf(w, "Rejected: %s\n", res.Decision.Reason)
	}
	if res.Post != nil {
		fmt.Fprintf(w, "\n%s\n", res.Post.Text)
		if res.Post.ImagePath != "" {
			fmt.Fprintf(w, "Image: %s\n", res.Post.ImagePath)
		}
	}
	return nil
}

// WriteBuildStats writes the summary of an index build to w.
func WriteBuildStats(w io.Writer, stats indexer.BuildStats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]interface{}{
			"documents":   stats.Documents,
			"chunks":      stats.Chunks,
			"skipped":     stats.Skipped,
			"duration_ms": stats.Duration.Milliseconds(),
		})
	}
	if stats.Skipped {
		fmt.Fprintln(w, "No documents found; index left unchanged.")
		return nil
	}
	fmt.Fprintf(w, "Indexed %d documents into %d chunks in %s\n", stats.Documents, stats.Chunks, stats.Duration.Round(time.Millisecond))
	return nil
}

// WriteStatus writes the persisted state to w.
func WriteStatus(w io.Writer, st *storage.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "Index:       %s\n", st.IndexPath)
	fmt.Fprintf(w, "Metadata:    %s\n", st.MetadataPath)
	fmt.Fprintf(w, "Images:      %s\n", st.ImageDir)
	if st.IndexExists {
		fmt.Fprintf(w, "Chunks:      %d\n", st.Chunks)
	} else {
		fmt.Fprintln(w, "Chunks:      (no index built)")
	}
	fmt.Fprintf(w, "Dimensions:  %d\n", st.Dimensions)
	fmt.Fprintf(w, "Disk usage:  %s\n", FormatBytes(st.DiskUsageBytes))
	return nil
}

// FormatBytes renders n as a human-readable size.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
