// package formatter exports playback history and queue snapshots to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/attunefm/attune/internal/models"
)

// HistoryToCSV converts history entries to CSV with columns: Track ID, Title, Artist, Cause, Played At
func HistoryToCSV(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Track ID", "Title", "Artist", "Cause", "Played At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			entry.TrackID(),
			entry.Title(),
			entry.Artist(),
			string(entry.Cause()),
			entry.PlayedAt().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// HistoryToMarkdown converts history entries to a Markdown listening log
func HistoryToMarkdown(entries []*models.HistoryEntry, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Listening History"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Plays**: %d\n\n", len(entries)))

	buf.WriteString("## Plays\n\n")
	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%s, %s)\n",
			i+1, entry.Artist(), entry.Title(), entry.Cause(),
			entry.PlayedAt().Format("2006-01-02 15:04")))
	}

	return buf.Bytes(), nil
}

// HistoryToText converts history entries to plain text
func HistoryToText(entries []*models.HistoryEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Plays: %d\n\n", len(entries)))
	for i, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, entry.Artist(), entry.Title()))
	}

	return buf.Bytes(), nil
}

// QueueToText renders a queue snapshot with the current track marked
func QueueToText(queue models.QueueSnapshot) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(queue.Tracks)))
	buf.WriteString(fmt.Sprintf("Loop: %s\n\n", queue.LoopMode))

	for i, track := range queue.Tracks {
		marker := "  "
		if i == queue.CurrentIndex {
			marker = "* "
		}
		duration := ""
		if track.Duration > 0 {
			duration = fmt.Sprintf(" [%s]", formatDuration(track.Duration))
		}
		buf.WriteString(fmt.Sprintf("%s%d. %s - %s%s\n", marker, i+1, track.Artist, track.Title, duration))
	}

	return buf.Bytes(), nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// WriteHistoryExport writes history to disk in the requested format.
//
// Format is one of "csv", "md", or "txt"; the path defaults to
// history_export.{format} in the working directory.
func WriteHistoryExport(entries []*models.HistoryEntry, path, format string) (string, error) {
	var (
		data []byte
		err  error
	)

	switch format {
	case "csv":
		data, err = HistoryToCSV(entries)
	case "md":
		data, err = HistoryToMarkdown(entries, "")
	case "txt", "":
		format = "txt"
		data, err = HistoryToText(entries)
	default:
		return "", fmt.Errorf("unknown export format: %s", format)
	}
	if err != nil {
		return "", err
	}

	if path == "" {
		path = "history_export." + format
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}
