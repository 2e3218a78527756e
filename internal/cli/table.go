package cli

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const tablePadding = 2

// writeTable aligns columns by display width so colored and wide cells line
// up.
func writeTable(out io.Writer, headers []string, rows [][]string) error {
	all := rows
	if len(headers) > 0 {
		all = append([][]string{headers}, rows...)
	}

	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	for _, row := range all {
		for i, cell := range row {
			b.WriteString(cell)
			if i == len(row)-1 {
				break
			}
			b.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+tablePadding))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(out, b.String())
	return err
}

func formatYesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
