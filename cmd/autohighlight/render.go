package main

import (
	"fmt"
	"strings"

	"github.com/autohighlight/autohighlight/metrics"
	"github.com/charmbracelet/lipgloss"
)

var (
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// renderHighlighted joins words with spaces, styling the ones whose index is in highlighted.
func renderHighlighted(words []string, highlighted []int) string {
	set := make(map[int]bool, len(highlighted))
	for _, idx := range highlighted {
		set[idx] = true
	}
	parts := make([]string, len(words))
	for i, w := range words {
		if set[i] {
			parts[i] = highlightStyle.Render(w)
		} else {
			parts[i] = w
		}
	}
	return strings.Join(parts, " ")
}

func renderScores(title string, s metrics.Scores) string {
	rows := []string{
		titleStyle.Render(title),
		fmt.Sprintf("precision  %.4f", s.Precision),
		fmt.Sprintf("recall     %.4f", s.Recall),
		fmt.Sprintf("f1         %.4f", s.F1),
		dimStyle.Render(fmt.Sprintf("tp=%d predicted=%d actual=%d support=%d",
			s.TruePositives, s.PredictedPositives, s.ActualPositives, s.Support)),
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
