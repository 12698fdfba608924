package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"music-librarian/internal/models"
	"music-librarian/internal/pipeline"
)

type column struct {
	title string
	align text.Align
}

func left(title string) column  { return column{title: title, align: text.AlignLeft} }
func right(title string) column { return column{title: title, align: text.AlignRight} }

// renderTable draws rows under columns. Short rows are padded with blanks.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, Align: c.align, AlignHeader: text.AlignLeft}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

func renderRecords(records []models.Record) string {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		outcome := "matched"
		if r.Skipped() {
			outcome = "skipped"
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), r.Name, r.RemoteID, r.LocalID, outcome})
	}
	return renderTable([]column{right("#"), left("Name"), left("Spotify ID"), left("Library ID"), left("Outcome")}, rows)
}

func renderReport(r pipeline.Report) string {
	rows := [][]string{
		{"Tracks", strconv.Itoa(r.Total)},
		{"Already cached", strconv.Itoa(r.AlreadyCached)},
		{"Auto matched", strconv.Itoa(r.AutoMatched)},
		{"Manually matched", strconv.Itoa(r.ManualMatched)},
		{"Skipped", strconv.Itoa(r.Skipped)},
		{"No candidates", strconv.Itoa(r.Unresolved)},
		{"Failed searches", strconv.Itoa(r.FailedSearches)},
	}
	if r.Conflicts > 0 {
		rows = append(rows, []string{"Not recorded (remote id taken)", strconv.Itoa(r.Conflicts)})
	}
	return renderTable([]column{left("Run " + r.RunID), right("Count")}, rows)
}
