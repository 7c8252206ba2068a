package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CardType is the fixed type label of every credit card transaction.
const CardType = "card"

// Transaction represents one posted movement of a DKB bank or card statement
type Transaction struct {
	Account   string
	Year      int
	Statement int
	Number    int
	Booked    time.Time
	Valued    time.Time
	Type      string
	Value     decimal.Decimal
	Payee     string
	Comment   string

	// Foreign currency details, card statements only
	Currency string
	Foreign  decimal.NullDecimal
	Rate     decimal.NullDecimal

	// Label assigned by the tagging rules, if any
	Label string
}

// StatementID returns the two digit statement identifier used in exports.
func (t *Transaction) StatementID() string {
	return fmt.Sprintf("%02d", t.Statement)
}

// NumberID returns the three digit per statement sequence number used in exports.
func (t *Transaction) NumberID() string {
	return fmt.Sprintf("%03d", t.Number)
}

// Date returns the valued date formatted the way budget tools expect it.
func (t *Transaction) Date() string {
	return t.Valued.Format("2006/01/02")
}

// Description is the best human readable text for the transaction.
func (t *Transaction) Description() string {
	if t.Payee != "" {
		return t.Payee
	}
	if t.Comment != "" {
		return t.Comment
	}
	return t.Type
}
