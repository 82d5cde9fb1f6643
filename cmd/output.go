package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"
)

// tabular values can also be printed as a table
type tabular interface {
	tableHeader() []string
	tableRows() [][]string
}

// writeOutput renders v as indented JSON, YAML or, for tabular values, a table
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		t, ok := v.(tabular)
		if !ok {
			return fmt.Errorf("table output is not available here (use json or yaml)")
		}
		return renderTable(w, t.tableHeader(), t.tableRows())
	default:
		return fmt.Errorf("unsupported output format %q (use json, yaml or table)", format)
	}
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// statusMark colors a cycle or health status for terminals
func statusMark(status string) string {
	switch status {
	case "normal", healthHealthy, "ok":
		return color.GreenString(status)
	case "partial", healthDegraded, "circuit_open", "quota_exhausted":
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}
