package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yurifrl/dkbparse/pkg/csv"
	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/tagging"
)

const filterDate = "2006-01-02"

type filters struct {
	startDate string
	endDate   string
	minAmount string
	maxAmount string
	payee     string
	account   string
	label     string
}

func (f *filters) empty() bool {
	return *f == filters{}
}

// toFilterFunc validates the flags once and returns the matching predicate.
// A label filter also matches labels below the named group. Card rows have
// no payee, so the payee filter looks at their comment.
func (f *filters) toFilterFunc(tagger *tagging.Tagger) (csv.FilterFunc, error) {
	if f.empty() {
		return nil, nil
	}

	var start, end time.Time
	var err error
	if f.startDate != "" {
		if start, err = time.Parse(filterDate, f.startDate); err != nil {
			return nil, fmt.Errorf("invalid --start: %w", err)
		}
	}
	if f.endDate != "" {
		if end, err = time.Parse(filterDate, f.endDate); err != nil {
			return nil, fmt.Errorf("invalid --end: %w", err)
		}
	}

	var minAmount, maxAmount decimal.NullDecimal
	if f.minAmount != "" {
		d, err := decimal.NewFromString(f.minAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid --min: %w", err)
		}
		minAmount = decimal.NewNullDecimal(d)
	}
	if f.maxAmount != "" {
		d, err := decimal.NewFromString(f.maxAmount)
		if err != nil {
			return nil, fmt.Errorf("invalid --max: %w", err)
		}
		maxAmount = decimal.NewNullDecimal(d)
	}

	if f.label != "" && tagger != nil && !tagger.Exists(f.label) {
		return nil, fmt.Errorf("unknown label %q", f.label)
	}

	payee := strings.ToLower(f.payee)
	return func(t *models.Transaction) bool {
		if !start.IsZero() && t.Valued.Before(start) {
			return false
		}
		if !end.IsZero() && t.Valued.After(end) {
			return false
		}
		if minAmount.Valid && t.Value.LessThan(minAmount.Decimal) {
			return false
		}
		if maxAmount.Valid && t.Value.GreaterThan(maxAmount.Decimal) {
			return false
		}
		if payee != "" && !strings.Contains(strings.ToLower(t.Description()), payee) {
			return false
		}
		if f.account != "" && t.Account != f.account {
			return false
		}
		if f.label != "" && t.Label != f.label {
			if tagger == nil || t.Label == "" || !tagger.BelongsTo(t.Label, f.label) {
				return false
			}
		}
		return true
	}, nil
}

func apply(txs []*models.Transaction, filter csv.FilterFunc) []*models.Transaction {
	if filter == nil {
		return txs
	}
	var out []*models.Transaction
	for _, t := range txs {
		if filter(t) {
			out = append(out, t)
		}
	}
	return out
}
