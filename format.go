package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/pdmq/internal/config"
	"github.com/tonimelisma/pdmq/internal/query"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(quiet bool, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Statusf prints a status message to stderr unless quiet mode is set.
func (cc *CLIContext) Statusf(format string, args ...any) {
	statusf(cc.Flags.Quiet, format, args...)
}

// outputFormat picks the result format. --json wins; "auto" renders a table
// on a terminal and CSV otherwise.
func outputFormat(jsonFlag bool, configured string, w io.Writer) (string, error) {
	if jsonFlag {
		return config.FormatJSON, nil
	}

	switch configured {
	case config.FormatTable, config.FormatCSV, config.FormatJSON:
		return configured, nil
	case config.FormatAuto, "":
		if isTerminal(w) {
			return config.FormatTable, nil
		}

		return config.FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q", configured)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// renderTable writes t to w in the given format.
func renderTable(w io.Writer, format string, t *query.Table) error {
	switch format {
	case config.FormatJSON:
		return renderJSON(w, t)
	case config.FormatCSV:
		return renderCSV(w, t)
	default:
		renderPretty(w, t)
		return nil
	}
}

func renderPretty(w io.Writer, t *query.Table) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}

	tw.AppendHeader(header)

	for _, row := range t.Rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = cellString(v)
		}

		tw.AppendRow(r)
	}

	tw.Render()
}

func renderCSV(w io.Writer, t *query.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	record := make([]string, len(t.Columns))

	for _, row := range t.Rows {
		for i, v := range row {
			record[i] = cellString(v)
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}

	return nil
}

// jsonResult is the JSON schema for `query --json`.
type jsonResult struct {
	Columns []jsonColumn     `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

type jsonColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func renderJSON(w io.Writer, t *query.Table) error {
	out := jsonResult{
		Columns: make([]jsonColumn, len(t.Columns)),
		Rows:    t.Records(),
	}

	for i, c := range t.Columns {
		out.Columns[i] = jsonColumn{Name: c.Name, Type: c.DatabaseType}
	}

	for _, rec := range out.Rows {
		for k, v := range rec {
			if b, ok := v.([]byte); ok {
				rec[k] = string(b)
			}
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// cellString formats one driver value for text output. NULL is empty.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
