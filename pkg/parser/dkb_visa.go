package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/dkbparse/pkg/models"
)

type visa struct {
	parser       *Parser
	statement    *models.Statement
	transactions []*models.Transaction
	next         int
	last         int

	// dates of the previous row, used when a row omits them
	booked *time.Time
	valued *time.Time
	// extended comment lines joined onto the last row
	extended int
}

// ParseCardStatement reconstructs the statement and transactions of a DKB
// VISA card statement ("Kreditkartenabrechnung") from its layout text lines.
func (p *Parser) ParseCardStatement(lines []string) (*Result, error) {
	v := &visa{
		parser: p,
		statement: &models.Statement{
			Kind:    models.KindCard,
			Opening: decimal.NewNullDecimal(decimal.Zero),
		},
		next: 1,
		last: -1,
	}

	for i, raw := range lines {
		n, line := i+1, normalizeLine(raw)
		if err := v.line(n, line); err != nil {
			return nil, err
		}
		// the card number may appear anywhere, even inside the transaction list
		if m := CardAccount.Match(line); m != nil {
			v.statement.Account = CanonicalCardNumber(m.Field("account"))
			v.parser.matched(n, m)
		}
	}

	return &Result{Statement: v.statement, Transactions: v.transactions}, nil
}

func (v *visa) line(n int, line string) error {
	m := Classify(v.parser.cardLines, line)
	if m == nil {
		if CardAccount.Match(line) == nil {
			v.parser.noise(n, line)
		}
		return nil
	}

	switch m.Kind {
	case LineBalanceOld:
		value, err := SignedDecimal(m.Field("value"), m.Field("sign"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		valued, err := ParseDate(m.Field("valued"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		v.statement.Opening = decimal.NewNullDecimal(value)
		v.booked, v.valued = &valued, &valued
	case LineMonthYear:
		month, ok := ParseMonth(m.Field("month"))
		if !ok {
			return &ContextError{LineNo: n, Line: line, Err: fmt.Errorf("%w %q", ErrUnknownMonth, m.Field("month"))}
		}
		year, err := strconv.Atoi(m.Field("year"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		v.statement.Month = m.Field("month")
		v.statement.Number = int(month)
		v.statement.Year = year
	case LineRange:
		from, err := ParseDate(m.Field("from"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		to, err := ParseDate(m.Field("to"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		v.statement.Period = models.Period{From: from, To: to}
	case LineBalanceNew:
		value, err := SignedDecimal(m.Field("value"), m.Field("sign"))
		if err != nil {
			return &ContextError{LineNo: n, Line: line, Err: err}
		}
		v.statement.Closing = decimal.NewNullDecimal(value)
	case LineSubtotal:
		// page carry-over, informational only
	case LineTransaction:
		return v.transaction(n, m)
	case LineExtendedComment:
		v.comment(n, m)
		return nil
	}

	v.parser.matched(n, m)
	return nil
}

func (v *visa) transaction(n int, m *Match) error {
	switch {
	case v.statement.Account == "":
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoAccount}
	case v.statement.Year == 0:
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoStatementYear}
	}

	value, err := SignedDecimal(m.Field("value"), m.Field("sign"))
	if err != nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: err}
	}
	if m.Has("booked") {
		booked, err := ParseDate(m.Field("booked"))
		if err != nil {
			return &ContextError{LineNo: n, Line: m.Line, Err: err}
		}
		v.booked = &booked
	}
	if m.Has("valued") {
		valued, err := ParseDate(m.Field("valued"))
		if err != nil {
			return &ContextError{LineNo: n, Line: m.Line, Err: err}
		}
		v.valued = &valued
	}
	if v.booked == nil || v.valued == nil {
		return &ContextError{LineNo: n, Line: m.Line, Err: ErrNoBookingDate}
	}

	tx := &models.Transaction{
		Account:   v.statement.Account,
		Year:      v.statement.Year,
		Statement: v.statement.Number,
		Number:    v.next,
		Booked:    *v.booked,
		Valued:    *v.valued,
		Type:      models.CardType,
		Value:     value,
		Comment:   m.Field("comment"),
	}
	if m.Has("currency") {
		if err := foreignAmount(tx, m); err != nil {
			return &ContextError{LineNo: n, Line: m.Line, Err: err}
		}
	}

	v.transactions = append(v.transactions, tx)
	v.last = len(v.transactions) - 1
	v.next++
	v.extended = 0
	v.parser.matched(n, m)
	return nil
}

func foreignAmount(tx *models.Transaction, m *Match) error {
	foreign, err := ParseDecimal(m.Field("foreign"))
	if err != nil {
		return err
	}
	rate, err := ParseDecimal(m.Field("rate"))
	if err != nil {
		return err
	}
	tx.Currency = m.Field("currency")
	tx.Foreign = decimal.NewNullDecimal(foreign)
	tx.Rate = decimal.NewNullDecimal(rate)
	return nil
}

func (v *visa) comment(n int, m *Match) {
	if v.last < 0 {
		v.parser.noise(n, m.Line)
		return
	}
	if v.parser.commentMode == CommentSingle && v.extended > 0 {
		v.parser.logger.Debug("extra comment line dropped", "n", n, "line", m.Line)
		return
	}

	tx := v.transactions[v.last]
	tx.Comment += " " + m.Field("comment")
	v.extended++
	v.parser.matched(n, m)
}
