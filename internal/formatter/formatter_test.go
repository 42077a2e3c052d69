package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/attunefm/attune/internal/models"
)

func testEntries() []*models.HistoryEntry {
	first := models.NewHistoryEntry(1, models.Track{ID: "t1", Title: "Opening", Artist: "Alpha"}, models.CauseAutomatic)
	first.SetPlayedAt(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))

	second := models.NewHistoryEntry(2, models.Track{ID: "t2", Title: "Closer", Artist: "Beta"}, models.CauseManual)
	second.SetPlayedAt(time.Date(2026, 3, 1, 9, 34, 0, 0, time.UTC))

	return []*models.HistoryEntry{first, second}
}

func TestHistoryToCSV(t *testing.T) {
	t.Run("writes headers and one row per entry", func(t *testing.T) {
		data, err := HistoryToCSV(testEntries())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected 3 lines, got %d", len(lines))
		}
		if !strings.HasPrefix(lines[0], "Track ID,Title,Artist") {
			t.Errorf("unexpected header: %s", lines[0])
		}
		if !strings.Contains(lines[1], "Opening") || !strings.Contains(lines[1], "automatic") {
			t.Errorf("unexpected first row: %s", lines[1])
		}
	})

	t.Run("empty history yields headers only", func(t *testing.T) {
		data, err := HistoryToCSV(nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 1 {
			t.Errorf("expected headers only, got %d lines", len(lines))
		}
	})
}

func TestHistoryToMarkdown(t *testing.T) {
	t.Run("uses the given title", func(t *testing.T) {
		data, err := HistoryToMarkdown(testEntries(), "March Session")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		text := string(data)
		if !strings.HasPrefix(text, "# March Session\n") {
			t.Errorf("expected title heading, got %s", text[:40])
		}
		if !strings.Contains(text, "**Plays**: 2") {
			t.Error("expected play count")
		}
		if !strings.Contains(text, "1. Alpha - Opening") {
			t.Error("expected numbered play list")
		}
	})

	t.Run("falls back to a default title", func(t *testing.T) {
		data, err := HistoryToMarkdown(nil, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.HasPrefix(string(data), "# Listening History\n") {
			t.Error("expected default title")
		}
	})
}

func TestQueueToText(t *testing.T) {
	queue := models.QueueSnapshot{
		Tracks: []models.Track{
			{ID: "t1", Title: "Opening", Artist: "Alpha", Duration: 3 * time.Minute},
			{ID: "t2", Title: "Closer", Artist: "Beta"},
		},
		CurrentIndex: 1,
		LoopMode:     models.LoopAll,
	}

	data, err := QueueToText(queue)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	text := string(data)
	if !strings.Contains(text, "Tracks: 2") {
		t.Error("expected track count")
	}
	if !strings.Contains(text, "Loop: all") {
		t.Errorf("expected loop mode, got %s", text)
	}
	if !strings.Contains(text, "  1. Alpha - Opening [3:00]") {
		t.Errorf("expected first track with duration, got %s", text)
	}
	if !strings.Contains(text, "* 2. Beta - Closer") {
		t.Errorf("expected current track marker, got %s", text)
	}
}

func TestWriteHistoryExport(t *testing.T) {
	t.Run("writes each format", func(t *testing.T) {
		for _, format := range []string{"csv", "md", "txt"} {
			path := filepath.Join(t.TempDir(), "out."+format)

			written, err := WriteHistoryExport(testEntries(), path, format)
			if err != nil {
				t.Fatalf("format %s: expected no error, got %v", format, err)
			}
			if written != path {
				t.Errorf("format %s: expected path %s, got %s", format, path, written)
			}

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("format %s: failed to read export: %v", format, err)
			}
			if len(data) == 0 {
				t.Errorf("format %s: export is empty", format)
			}
		}
	})

	t.Run("empty format defaults to text", func(t *testing.T) {
		dir := t.TempDir()
		cwd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(dir); err != nil {
			t.Fatal(err)
		}
		defer os.Chdir(cwd)

		written, err := WriteHistoryExport(testEntries(), "", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if written != "history_export.txt" {
			t.Errorf("expected default filename, got %s", written)
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		if _, err := WriteHistoryExport(testEntries(), "", "xml"); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})
}
