package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
)

// maxCellWidth bounds a table cell, in terminal columns.
const maxCellWidth = 48

// printTable writes rows under headers with columns aligned by display
// width, so wide (CJK) characters line up.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i := range headers {
			if i < len(row) {
				if cw := runewidth.StringWidth(cell(row[i])); cw > widths[i] {
					widths[i] = cw
				}
			}
		}
	}

	line := func(cells []string, paint func(string) string) {
		parts := make([]string, len(headers))
		for i := range headers {
			var c string
			if i < len(cells) {
				c = cell(cells[i])
			}
			parts[i] = paint(runewidth.FillRight(c, widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}

	line(headers, func(s string) string { return color.Bold.Sprint(s) })
	sep := make([]string, len(headers))
	for i, wd := range widths {
		sep[i] = strings.Repeat("-", wd)
	}
	line(sep, plain)
	for _, row := range rows {
		line(row, plain)
	}
}

func plain(s string) string { return s }

// cell flattens newlines and truncates to maxCellWidth.
func cell(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\t", " ").Replace(s)
	return runewidth.Truncate(s, maxCellWidth, "…")
}

// formatValue renders a result value for display.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = formatValue(v)
		}
	}
	return out
}

func okMark() string   { return color.Green.Sprint("OK") }
func failMark() string { return color.Red.Sprint("FAIL") }
func warnMark() string { return color.Yellow.Sprint("WARN") }

func label(s string) string { return color.Cyan.Sprint(s) }
