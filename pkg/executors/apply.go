package executors

import (
	"context"
	"fmt"
)

// Apply creates every local transaction that is missing in YNAB and returns
// how many were created.
func (e *Executor) Apply(ctx context.Context) (int, error) {
	e.logger.Debug("applying plan", "budget", e.plan.YNAB.BudgetID)

	reports, err := e.reports(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, r := range reports {
		e.logger.Info("transactions to create", "count", r.MissingCount(), "account", r.Account, "account_id", r.AccountID)
		if r.MissingCount() == 0 {
			continue
		}

		batch, err := r.Payloads(r.AccountID)
		if err != nil {
			return created, err
		}
		if err := e.remote.CreateTransactions(e.plan.YNAB.BudgetID, batch); err != nil {
			return created, fmt.Errorf("failed to create transactions: %w", err)
		}
		created += len(batch)
		e.logger.Info("created transactions", "count", len(batch), "account_id", r.AccountID)
	}

	return created, nil
}
