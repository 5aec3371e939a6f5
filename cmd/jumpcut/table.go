package main

import (
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/maauso/jumpcut/internal/plan"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// renderSegments renders one row per planned segment.
func renderSegments(p plan.Plan) string {
	headers := []string{"#", "Start", "End", "Length", "Speed", "Output"}
	aligns := []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}

	if len(p.Segments) == 0 {
		return renderTable(headers, [][]string{{"-", "0.000", formatSeconds(p.Duration), formatSeconds(p.Duration), "1x", formatSeconds(p.Duration)}}, aligns)
	}

	rows := make([][]string, 0, len(p.Segments))
	for i, seg := range p.Segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			formatSeconds(seg.Start),
			formatSeconds(seg.End),
			formatSeconds(seg.Length()),
			formatSpeed(seg.Speed),
			formatSeconds(seg.OutputLength()),
		})
	}
	return renderTable(headers, rows, aligns)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatSpeed(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "x"
}
