package parser

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/dkbparse/pkg/models"
)

// TableHeaderLayout records the columns of the most recent table header of a
// bank statement.
type TableHeaderLayout struct {
	DebitStart  int
	DebitEnd    int
	CreditStart int
	CreditEnd   int
	Comment     int
}

func headerLayout(m *Match) *TableHeaderLayout {
	return &TableHeaderLayout{
		DebitStart:  m.Start("minus"),
		DebitEnd:    m.End("minus"),
		CreditStart: m.Start("plus"),
		CreditEnd:   m.End("plus"),
		Comment:     m.Start("comment"),
	}
}

type kontoauszug struct {
	parser       *Parser
	statement    *models.Statement
	header       *TableHeaderLayout
	transactions []*models.Transaction
	next         int
	last         int
}

// ParseBankStatement reconstructs the statement and transactions of a DKB
// bank account statement ("Kontoauszug") from its layout text lines.
func (p *Parser) ParseBankStatement(lines []string) (*Result, error) {
	k := &kontoauszug{
		parser:    p,
		statement: &models.Statement{Kind: models.KindBank},
		next:      1,
		last:      -1,
	}

	for i, raw := range lines {
		if err := k.line(i+1, normalizeLine(raw)); err != nil {
			return nil, err
		}
	}

	return &Result{Statement: k.statement, Transactions: k.transactions}, nil
}

func (k *kontoauszug) line(n int, line string) error {
	m := Classify(BankRecognizers, line)
	if m == nil {
		k.parser.noise(n, line)
		return nil
	}

	switch m.Kind {
	case LineRange:
		return k.period(n, m)
	case LineAccount:
		k.statement.Account = m.Field("account")
		k.statement.IBAN = strings.TrimSpace(m.Field("iban"))
	case LineBalanceOld, LineBalanceNew:
		value, err := SignedDecimal(m.Field("value"), m.Field("sign"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		if m.Kind == LineBalanceOld {
			k.statement.Opening = decimal.NewNullDecimal(value)
		} else {
			k.statement.Closing = decimal.NewNullDecimal(value)
		}
	case LineTableHeader:
		k.header = headerLayout(m)
	case LineTransaction:
		return k.transaction(n, m)
	case LineDetail:
		k.detail(n, m)
		return nil
	}

	k.parser.matched(n, m)
	return nil
}

func (k *kontoauszug) period(n int, m *Match) error {
	no, err := strconv.Atoi(m.Field("no"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	year, err := strconv.Atoi(m.Field("year"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	from, err := ParseDate(m.Field("from"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	to, err := ParseDate(m.Field("to"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}

	k.statement.Number = no
	k.statement.Year = year
	k.statement.Period = models.Period{From: from, To: to}
	k.parser.matched(n, m)
	return nil
}

func (k *kontoauszug) transaction(n int, m *Match) error {
	switch {
	case k.header == nil:
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoTableHeader}
	case k.statement.Year == 0:
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoStatementYear}
	case k.statement.Account == "":
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoAccount}
	}

	value, err := ParseDecimal(m.Field("value"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	booked, err := DateInYear(m.Field("booked"), k.statement.Year)
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	valued, err := DateInYear(m.Field("valued"), k.statement.Year)
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}

	k.transactions = append(k.transactions, &models.Transaction{
		Account:   CanonicalBankAccount(k.statement.Account),
		Year:      k.statement.Year,
		Statement: k.statement.Number,
		Number:    k.next,
		Booked:    booked,
		Valued:    valued,
		Type:      strings.TrimSpace(m.Field("type")),
		Value:     value.Mul(ColumnSign(m.Start("value"), k.header.DebitEnd)),
	})
	k.last = len(k.transactions) - 1
	k.next++
	k.parser.matched(n, m)
	return nil
}

// detail joins a continuation line onto the last transaction. Only lines
// starting exactly in the comment column count; the first one is the payee.
func (k *kontoauszug) detail(n int, m *Match) {
	if k.header == nil {
		k.parser.noise(n, m.Line)
		return
	}
	if m.Start("line") != k.header.Comment {
		k.parser.logger.Debug("detail line outside comment column", "n", n, "column", m.Start("line"), "comment_column", k.header.Comment)
		return
	}
	if k.last < 0 {
		k.parser.logger.Debug("detail line before first transaction", "n", n, "line", m.Line)
		return
	}

	tx := k.transactions[k.last]
	text := m.Field("line")
	if tx.Payee == "" {
		tx.Payee = text
		tx.Comment = text
	} else {
		// the extractor may have collapsed spaces inside text; one blank is all
		// that can be restored between lines
		tx.Comment += " " + text
	}
	k.parser.matched(n, m)
}
