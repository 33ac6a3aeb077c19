package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/piiscan/internal/report"
	"github.com/redactyl/piiscan/internal/types"
)

// Run opens the results browser and blocks until the user quits.
func Run(results []types.MatchResult, rescanFunc func() ([]types.MatchResult, error)) error {
	return run(NewModel(results, rescanFunc))
}

// RunWithBaseline opens the browser with baselined occurrences marked.
// baselinePath receives occurrences accepted from inside the browser.
func RunWithBaseline(results []types.MatchResult, baseline report.Baseline, baselinePath string, rescanFunc func() ([]types.MatchResult, error)) error {
	return run(NewModelWithBaseline(results, baseline, baselinePath, rescanFunc))
}

func run(m Model) error {
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
