package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"genstudio/internal/domain"
	"genstudio/internal/queue"
)

func renderBoard(snap queue.Snapshot) string {
	var b strings.Builder
	for _, banner := range snap.Banners {
		fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(banner.Level)), banner.Message)
	}
	if len(snap.Placeholders) > 0 {
		rows := make([][]string, 0, len(snap.Placeholders))
		for _, p := range snap.Placeholders {
			origin := "batch " + shortID(p.BatchID)
			if p.Recovered {
				origin = "recovered"
			}
			rows = append(rows, []string{origin, strconv.Itoa(p.Unit + 1), p.Status(), p.JobID, truncate(p.Prompt, 40)})
		}
		b.WriteString(renderTable([]string{"Origin", "#", "Status", "Job", "Prompt"}, rows, []columnAlignment{alignLeft, alignRight}))
		b.WriteString("\n")
	}
	if len(snap.Assets) > 0 {
		b.WriteString(renderGallery(snap.Assets))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "Nothing to show.\n"
	}
	return b.String()
}

func renderGallery(assets []domain.GeneratedAsset) string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		id := a.ID
		if id == "" {
			id = "(unsaved)"
		}
		created := ""
		if !a.CreatedAt.IsZero() {
			created = a.CreatedAt.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{id, string(a.AspectRatio), string(a.ImageSize), truncate(a.Prompt, 40), a.URL, created})
	}
	return renderTable([]string{"ID", "Ratio", "Size", "Prompt", "URL", "Created"}, rows, nil)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
