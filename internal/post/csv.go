package post

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"id", "content", "status", "created_at", "updated_at",
	"scheduled_at", "published_at", "media_urls", "prompt_id",
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// WriteCSV writes posts with a header row. Media URLs are joined with " | ".
func WriteCSV(w io.Writer, posts []Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i := range posts {
		p := &posts[i]
		promptID := ""
		if p.PromptID != nil {
			promptID = strconv.FormatUint(*p.PromptID, 10)
		}
		row := []string{
			strconv.FormatUint(p.ID, 10),
			p.Content,
			string(p.Status),
			formatTime(&p.CreatedAt),
			formatTime(&p.UpdatedAt),
			formatTime(p.ScheduledAt),
			formatTime(p.PublishedAt),
			strings.Join(p.MediaURLs, " | "),
			promptID,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is the attachment name for an export taken at t.
func ExportFilename(t time.Time) string {
	return "posts_export_" + t.UTC().Format("20060102_150405") + ".csv"
}
