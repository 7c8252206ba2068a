package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells bank account statements and credit card statements apart
type Kind string

const (
	KindBank Kind = "bank"
	KindCard Kind = "card"
)

// Period is the date range a statement covers
type Period struct {
	From time.Time
	To   time.Time
}

// Statement holds the metadata of one bank or card statement.
//
// For bank statements Number is the statement sequence number of the year,
// for card statements it is the billing month.
type Statement struct {
	Kind    Kind
	Number  int
	Month   string
	Year    int
	Period  Period
	Account string
	IBAN    string
	Opening decimal.NullDecimal
	Closing decimal.NullDecimal
	File    string
}

// ID returns the two digit statement identifier.
func (s *Statement) ID() string {
	return fmt.Sprintf("%02d", s.Number)
}

// Delta is the declared balance change of the statement. The second return
// value is false when either balance is missing.
func (s *Statement) Delta() (decimal.Decimal, bool) {
	if !s.Opening.Valid || !s.Closing.Valid {
		return decimal.Zero, false
	}
	return s.Closing.Decimal.Sub(s.Opening.Decimal), true
}

func (s *Statement) String() string {
	return fmt.Sprintf("%s statement %s/%d account %s", s.Kind, s.ID(), s.Year, s.Account)
}
