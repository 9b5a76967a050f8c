package render

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/bem130/rubyquiz/internal/ui/theme"
)

// Progress renders a horizontal bar filled to ratio (0 to 1), followed by
// the percentage. width is the total width including label and percentage.
func (r *Renderer) Progress(label string, ratio float64, width int) string {
	var b strings.Builder
	if label != "" {
		b.WriteString(r.paint(theme.Prompt, label))
		b.WriteString("  ")
	}

	labelWidth := lipgloss.Width(b.String())
	const percentWidth = 6 // "  100%"
	barWidth := width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	ratio = max(0, min(ratio, 1))
	filled := int(float64(barWidth) * ratio)
	fill, rest := "█", "░"
	if r.plain {
		fill, rest = "#", "-"
	}
	b.WriteString(r.paint(theme.Correct, strings.Repeat(fill, filled)))
	b.WriteString(r.paint(theme.Rule, strings.Repeat(rest, barWidth-filled)))
	b.WriteString(r.paint(theme.Subtitle, fmt.Sprintf("  %d%%", int(ratio*100))))
	return b.String()
}
