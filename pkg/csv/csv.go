package csv

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/yurifrl/dkbparse/pkg/models"
)

const dateLayout = "2006-01-02"

// Order selects the row order of an export.
type Order string

const (
	// OrderValuedDesc puts the most recently valued transactions first
	OrderValuedDesc Order = "valued-desc"
	// OrderNone keeps the order of the statements
	OrderNone Order = "none"
)

// Row is one exported transaction.
type Row struct {
	Account     string `csv:"account"`
	Year        string `csv:"year"`
	Statement   string `csv:"statement"`
	Transaction string `csv:"transaction"`
	Booked      string `csv:"booked"`
	Valued      string `csv:"valued"`
	Value       string `csv:"value"`
	Type        string `csv:"type"`
	Payee       string `csv:"payee"`
	Comment     string `csv:"comment"`
	Currency    string `csv:"currency"`
	Foreign     string `csv:"foreign"`
	Rate        string `csv:"rate"`
	Label       string `csv:"label"`
}

type FilterFunc func(*models.Transaction) bool

// Create renders the transactions that pass filter as CSV with a header row.
func Create(records []*models.Transaction, order Order, filter FilterFunc) ([]byte, error) {
	selected := make([]*models.Transaction, 0, len(records))
	for _, r := range records {
		if filter == nil || filter(r) {
			selected = append(selected, r)
		}
	}
	if order != OrderNone {
		SortByValued(selected)
	}

	rows := make([]*Row, 0, len(selected))
	for _, r := range selected {
		rows = append(rows, toRow(r))
	}

	return gocsv.MarshalBytes(&rows)
}

// Write is Create straight into w.
func Write(w io.Writer, records []*models.Transaction, order Order, filter FilterFunc) error {
	data, err := Create(records, order, filter)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// SortByValued orders transactions by valued date, newest first. Ties keep
// their statement order.
func SortByValued(records []*models.Transaction) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Valued.After(records[j].Valued)
	})
}

func toRow(t *models.Transaction) *Row {
	row := &Row{
		Account:     t.Account,
		Year:        strconv.Itoa(t.Year),
		Statement:   t.StatementID(),
		Transaction: t.NumberID(),
		Booked:      t.Booked.Format(dateLayout),
		Valued:      t.Valued.Format(dateLayout),
		Value:       t.Value.StringFixed(2),
		Type:        t.Type,
		Payee:       t.Payee,
		Comment:     t.Comment,
		Currency:    t.Currency,
		Label:       t.Label,
	}
	if t.Foreign.Valid {
		row.Foreign = t.Foreign.Decimal.String()
	}
	if t.Rate.Valid {
		row.Rate = t.Rate.Decimal.String()
	}
	return row
}

// Read parses a CSV produced by Create back into transactions.
func Read(r io.Reader) ([]*models.Transaction, error) {
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	out := make([]*models.Transaction, 0, len(rows))
	for i, row := range rows {
		t, err := fromRow(row)
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func fromRow(row *Row) (*models.Transaction, error) {
	t := &models.Transaction{
		Account:  row.Account,
		Type:     row.Type,
		Payee:    row.Payee,
		Comment:  row.Comment,
		Currency: row.Currency,
		Label:    row.Label,
	}

	var err error
	if t.Year, err = strconv.Atoi(row.Year); err != nil {
		return nil, fmt.Errorf("year: %w", err)
	}
	if t.Statement, err = strconv.Atoi(row.Statement); err != nil {
		return nil, fmt.Errorf("statement: %w", err)
	}
	if t.Number, err = strconv.Atoi(row.Transaction); err != nil {
		return nil, fmt.Errorf("transaction: %w", err)
	}
	if t.Booked, err = time.Parse(dateLayout, row.Booked); err != nil {
		return nil, fmt.Errorf("booked: %w", err)
	}
	if t.Valued, err = time.Parse(dateLayout, row.Valued); err != nil {
		return nil, fmt.Errorf("valued: %w", err)
	}

	value, err := decimal.NewFromString(row.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	t.Value = value.Round(2)

	if t.Foreign, err = nullDecimal(row.Foreign); err != nil {
		return nil, fmt.Errorf("foreign: %w", err)
	}
	if t.Rate, err = nullDecimal(row.Rate); err != nil {
		return nil, fmt.Errorf("rate: %w", err)
	}
	return t, nil
}

func nullDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
