package notifier

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"compgrid/internal/model"
)

// Markers appended to cells in plain-text tables.
const (
	markGood = "✓"
	markBad  = "✗"
)

// FormatTable lays the grid out as an aligned plain-text table: one header line
// with the column names, then one line per row. Values are right aligned.
func FormatTable(g *model.Grid) string {
	lines := make([][]string, 0, len(g.Rows)+1)

	header := make([]string, 0, len(g.Columns)+1)
	header = append(header, "")
	for _, c := range g.Columns {
		header = append(header, c.Name)
	}
	lines = append(lines, header)

	for _, row := range g.Rows {
		line := make([]string, 0, len(row.Cells)+1)
		line = append(line, row.Spec.Name)
		for _, cell := range row.Cells {
			line = append(line, cellText(cell))
		}
		lines = append(lines, line)
	}

	widths := make([]int, len(header))
	for _, line := range lines {
		for i, s := range line {
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var b strings.Builder
	for _, line := range lines {
		for i, s := range line {
			pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(s))
			if i == 0 {
				b.WriteString(s + pad)
				continue
			}
			b.WriteString("  " + pad + s)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// cellText is the display value with its status or tone marker.
func cellText(c model.Cell) string {
	switch {
	case c.Status == model.StatusMet, c.Tone == model.ToneGood:
		return c.Display + " " + markGood
	case c.Status == model.StatusMissed, c.Tone == model.ToneBad:
		return c.Display + " " + markBad
	}
	return c.Display
}

// FormatJobList formats the configured jobs as a Telegram reply.
func FormatJobList(jobs []JobInfo) string {
	if len(jobs) == 0 {
		return "No grids are scheduled."
	}
	var b strings.Builder
	b.WriteString("🗓 <b>Scheduled grids</b>\n\n")
	for _, j := range jobs {
		b.WriteString(fmt.Sprintf("• <code>%s</code> → %s (%s)\n", escape(j.Name), j.Target, escape(j.Cron)))
	}
	b.WriteString("\nSend /grid &lt;name&gt; to run one now.")
	return b.String()
}

// FormatFailure reports a failed grid run.
func FormatFailure(grid string, err error) string {
	return fmt.Sprintf("❌ <b>%s</b> failed: %s", escape(grid), escape(err.Error()))
}

// JobInfo describes a scheduled grid for listings.
type JobInfo struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	Cron   string `json:"cron"`
	Next   string `json:"next,omitempty"`
}
