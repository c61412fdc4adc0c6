// Package render formats command output as terminal tables.
package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086")).Italic(true)
)

// Table writes rows under headers with a rounded border. An empty row set
// prints emptyText instead.
func Table(w io.Writer, headers []string, rows [][]string, emptyText string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render(emptyText))
		return err
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	_, err := fmt.Fprintln(w, t.String())
	return err
}

// List writes one value per line, or emptyText when there are none
func List(w io.Writer, values []string, emptyText string) error {
	if len(values) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render(emptyText))
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}
