package executors

import (
	"context"
	"io"
	"sort"

	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"

	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/plan"
	"github.com/yurifrl/dkbparse/pkg/service"
	"github.com/yurifrl/dkbparse/pkg/ynab"
)

// Remote is the part of the YNAB API the executors use.
type Remote interface {
	GetTransactionsByAccount(budgetID, accountID string, filter *transaction.Filter) ([]*ynab.Transaction, error)
	CreateTransactions(budgetID string, payloads []transaction.PayloadTransaction) error
}

type Executor struct {
	logger    *log.Logger
	plan      *plan.Plan
	processor *service.Processor
	remote    Remote
	out       io.Writer
}

func New(logger *log.Logger, p *plan.Plan, processor *service.Processor, remote Remote, out io.Writer) *Executor {
	return &Executor{
		logger:    logger,
		plan:      p,
		processor: processor,
		remote:    remote,
		out:       out,
	}
}

// AccountReport is the reconciliation of one statement account.
type AccountReport struct {
	Account   string
	AccountID string
	*Report
}

// reports parses the plan's statement directories and reconciles every
// mapped account against YNAB.
func (e *Executor) reports(ctx context.Context) ([]*AccountReport, error) {
	res, err := e.processor.ProcessDirectories(ctx, e.plan.Dirs()...)
	if err != nil {
		return nil, err
	}
	for _, f := range res.Failures {
		e.logger.Warn("statement skipped", "path", f.Path, "error", f.Err)
	}

	byAccount := make(map[string][]*models.Transaction)
	for _, tx := range res.Transactions {
		byAccount[tx.Account] = append(byAccount[tx.Account], tx)
	}
	accounts := make([]string, 0, len(byAccount))
	for a := range byAccount {
		accounts = append(accounts, a)
	}
	sort.Strings(accounts)

	var out []*AccountReport
	for _, account := range accounts {
		accountID, ok := e.plan.AccountID(account)
		if !ok {
			e.logger.Warn("account not mapped in plan", "account", account, "transactions", len(byAccount[account]))
			continue
		}

		remoteTxs, err := e.remote.GetTransactionsByAccount(e.plan.YNAB.BudgetID, accountID, nil)
		if err != nil {
			return nil, err
		}

		report := BuildReport(byAccount[account], remoteTxs, e.plan.YNAB.UseCustomID)
		e.logger.Debug("reconciled account", "account", account, "total", len(report.Items),
			"in_sync", report.InSyncCount(), "to_add", report.MissingCount())
		out = append(out, &AccountReport{Account: account, AccountID: accountID, Report: report})
	}
	return out, nil
}
