package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"fieldsync/internal/api"
)

const maxErrorColumn = 48

func queueListColumns() []column {
	return []column{left("Local ID"), left("Seizure"), left("Status"), right("Attempts"), left("Created"), left("Error")}
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.LocalID,
			fallback(item.Summary, "-"),
			item.StatusLabel,
			fmt.Sprint(item.Attempts),
			formatTimestamp(item.CreatedAt),
			truncate(item.ErrorMessage, maxErrorColumn),
		})
	}
	return rows
}

func printQueueItem(out io.Writer, item api.QueueItem) {
	fields := []struct{ label, value string }{
		{"Local ID", item.LocalID},
		{"Seizure", fallback(item.Summary, "-")},
		{"Status", item.StatusLabel},
		{"Attempts", fmt.Sprint(item.Attempts)},
		{"Created", formatTimestamp(item.CreatedAt)},
		{"Updated", formatTimestamp(item.UpdatedAt)},
		{"Last attempt", formatTimestamp(item.LastAttemptAt)},
		{"Error", fallback(item.ErrorMessage, "-")},
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%-13s %s\n", f.label+":", f.value)
	}
	if len(item.Payload) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, item.Payload, "", "  "); err == nil {
			fmt.Fprintln(out, "Payload:")
			fmt.Fprintln(out, pretty.String())
		}
	}
}

func formatTimestamp(value string) string {
	t, ok := api.ParseTime(value)
	if !ok {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if len([]rune(value)) <= limit {
		return value
	}
	return string([]rune(value)[:limit-1]) + "…"
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
