// Package verify cross-checks parsed transactions against the balances a
// statement declares.
package verify

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/dkbparse/pkg/models"
)

// Discrepancy describes a statement whose transactions do not add up to its
// declared balance change.
type Discrepancy struct {
	File      string
	Statement string
	Account   string
	Declared  decimal.Decimal
	Summed    decimal.Decimal
	// MissingBalance is set when the opening or closing balance was never seen
	MissingBalance bool
}

func (d *Discrepancy) String() string {
	if d.MissingBalance {
		return fmt.Sprintf("statement %s of %s (%s) has no opening or closing balance, transaction sum is %s",
			d.Statement, d.Account, d.File, d.Summed.StringFixed(2))
	}
	return fmt.Sprintf("parsed balance difference of %s and transaction sum of %s for %s",
		d.Declared.StringFixed(2), d.Summed.StringFixed(2), d.File)
}

// Sum adds up the transaction values.
func Sum(txs []*models.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Value)
	}
	return sum
}

// Check compares closing - opening with the sum of txs using exact decimal
// equality. It returns nil when the statement is consistent.
func Check(st *models.Statement, txs []*models.Transaction) *Discrepancy {
	sum := Sum(txs)
	d := &Discrepancy{
		File:      st.File,
		Statement: st.ID(),
		Account:   st.Account,
		Summed:    sum,
	}

	declared, ok := st.Delta()
	if !ok {
		d.MissingBalance = true
		return d
	}
	if declared.Equal(sum) {
		return nil
	}
	d.Declared = declared
	return d
}
