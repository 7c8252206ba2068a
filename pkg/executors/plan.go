package executors

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // gray
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	accountStyle = lipgloss.NewStyle().Bold(true)
)

// Plan prints which local transactions already exist in YNAB and which an
// apply would create. Nothing is written remotely.
func (e *Executor) Plan(ctx context.Context) ([]*AccountReport, error) {
	e.logger.Debug("planning", "budget", e.plan.YNAB.BudgetID)

	reports, err := e.reports(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range reports {
		fmt.Fprintln(e.out, accountStyle.Render(fmt.Sprintf("%s -> %s", r.Account, r.AccountID)))
		for _, m := range r.Items {
			line := fmt.Sprintf("%s | %-30.30s | %s | %10s EUR",
				m.Local.Date(), m.Local.Description(), CustomID(m.Local), m.Local.Value.StringFixed(2))
			if m.Status == Synced {
				fmt.Fprintln(e.out, syncedStyle.Render("= "+line))
				continue
			}
			fmt.Fprintln(e.out, addedStyle.Render("+ "+line))
		}

		if r.MissingCount() == 0 {
			fmt.Fprintf(e.out, "\nPlan: All %d transaction(s) are in sync\n\n", r.InSyncCount())
		} else {
			fmt.Fprintf(e.out, "\nPlan: %d transaction(s) will be added, %d already in sync\n\n", r.MissingCount(), r.InSyncCount())
		}
	}

	return reports, nil
}
