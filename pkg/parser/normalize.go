package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Months maps the German month names printed on card statements to their number.
var Months = map[string]time.Month{
	"Januar":    time.January,
	"Februar":   time.February,
	"März":      time.March,
	"April":     time.April,
	"Mai":       time.May,
	"Juni":      time.June,
	"Juli":      time.July,
	"August":    time.August,
	"September": time.September,
	"Oktober":   time.October,
	"November":  time.November,
	"Dezember":  time.December,
}

var (
	minusOne = decimal.NewFromInt(-1)
	plusOne  = decimal.NewFromInt(1)
)

// ParseDecimal converts a German formatted number such as "1.234,56" into
// an exact decimal.
func ParseDecimal(s string) (decimal.Decimal, error) {
	plain := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	d, err := decimal.NewFromString(plain)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// Sign maps a sign glyph to its multiplier. "-" and "S" (Soll) are debits,
// everything else including an absent glyph is a credit.
func Sign(glyph string) decimal.Decimal {
	switch glyph {
	case "-", "S":
		return minusOne
	default:
		return plusOne
	}
}

// SignedDecimal parses value and applies the sign glyph.
func SignedDecimal(value, glyph string) (decimal.Decimal, error) {
	d, err := ParseDecimal(value)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Mul(Sign(glyph)), nil
}

// ColumnSign decides the sign of a bank transaction from where its value
// starts relative to the end of the debit column of the table header.
func ColumnSign(valueStart, debitEnd int) decimal.Decimal {
	if valueStart < debitEnd {
		return minusOne
	}
	return plusOne
}

// ParseDate parses "dd.mm.yy" or "dd.mm.yyyy". Two digit years are placed in
// the 21st century.
func ParseDate(s string) (time.Time, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	year := parts[2]
	if len(year) == 2 {
		year = "20" + year
	}
	return dayMonthYear(parts[0], parts[1], year)
}

// DateInYear resolves a "dd.mm." token against the statement year.
func DateInYear(s string, year int) (time.Time, error) {
	parts := strings.Split(strings.TrimSuffix(s, "."), ".")
	if len(parts) != 2 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return dayMonthYear(parts[0], parts[1], strconv.Itoa(year))
}

func dayMonthYear(day, month, year string) (time.Time, error) {
	t, err := time.Parse("02.01.2006", day+"."+month+"."+year)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s.%s.%s: %w", day, month, year, err)
	}
	return t, nil
}

// ParseMonth resolves a German month name.
func ParseMonth(name string) (time.Month, bool) {
	m, ok := Months[norm.NFC.String(name)]
	return m, ok
}

// CanonicalBankAccount left pads a bank account number with zeros to 16 digits.
func CanonicalBankAccount(account string) string {
	if len(account) >= 16 {
		return account
	}
	return strings.Repeat("0", 16-len(account)) + account
}

// CanonicalCardNumber removes the blanks from a masked card number.
func CanonicalCardNumber(card string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, card)
}

// normalizeLine composes decomposed umlauts so that "Übertrag" and "März"
// match whatever normal form the text extractor produced.
func normalizeLine(line string) string {
	return norm.NFC.String(line)
}
