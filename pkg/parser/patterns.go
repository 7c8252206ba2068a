package parser

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// LineKind is the closed set of line shapes found in DKB statement layouts
type LineKind string

const (
	LineRange           LineKind = "range"
	LineAccount         LineKind = "account"
	LineBalanceOld      LineKind = "balance_old"
	LineBalanceNew      LineKind = "balance_new"
	LineTableHeader     LineKind = "table_header"
	LineTransaction     LineKind = "transaction"
	LineDetail          LineKind = "detail"
	LineSubtotal        LineKind = "subtotal"
	LineMonthYear       LineKind = "month_year"
	LineExtendedComment LineKind = "extended_comment"
)

// building blocks shared by the recognizers
const (
	date         = `\d\d\.\d\d\.(?:\d\d\b|\d\d\d\d\b)`
	dateNoYear   = `\d\d\.\d\d\.`
	decimalValue = `\d{1,3}(?:\.\d{3})*(?:,\d+)?`
	decimalFixed = `\d{1,3}(?:\.\d{3})*,\d{2}`
	text         = `\S.*\S`
	signGlyph    = `[-+SH]`
	cardNumber   = `\b[0-9X]{4}\s[0-9X]{4}\s[0-9X]{4}\s[0-9X]{4}\b`
	fieldGap     = `\s{2,}`
	indent       = `\s{3,}`
	trailer      = `(?:\s.*)?`
)

// ISO 4217
var currencies = []string{
	"AED", "AFN", "ALL", "AMD", "ANG", "AOA", "ARS", "AUD", "AWG", "AZN", "BAM", "BBD", "BDT", "BGN", "BHD",
	"BIF", "BMD", "BND", "BOB", "BRL", "BSD", "BTN", "BWP", "BYR", "BZD", "CAD", "CDF", "CHF", "CLP", "CNY",
	"COP", "CRC", "CUC", "CUP", "CVE", "CZK", "DJF", "DKK", "DOP", "DZD", "EGP", "ERN", "ETB", "EUR", "FJD",
	"FKP", "GBP", "GEL", "GGP", "GHS", "GIP", "GMD", "GNF", "GTQ", "GYD", "HKD", "HNL", "HRK", "HTG", "HUF",
	"IDR", "ILS", "IMP", "INR", "IQD", "IRR", "ISK", "JEP", "JMD", "JOD", "JPY", "KES", "KGS", "KHR", "KMF",
	"KPW", "KRW", "KWD", "KYD", "KZT", "LAK", "LBP", "LKR", "LRD", "LSL", "LYD", "MAD", "MDL", "MGA", "MKD",
	"MMK", "MNT", "MOP", "MRO", "MUR", "MVR", "MWK", "MXN", "MYR", "MZN", "NAD", "NGN", "NIO", "NOK", "NPR",
	"NZD", "OMR", "PAB", "PEN", "PGK", "PHP", "PKR", "PLN", "PYG", "QAR", "RON", "RSD", "RUB", "RWF", "SAR",
	"SBD", "SCR", "SDG", "SEK", "SGD", "SHP", "SLL", "SOS", "SPL", "SRD", "STD", "SVC", "SYP", "SZL", "THB",
	"TJS", "TMT", "TND", "TOP", "TRY", "TTD", "TVD", "TWD", "TZS", "UAH", "UGX", "USD", "UYU", "UZS", "VEF",
	"VND", "VUV", "WST", "XAF", "XCD", "XDR", "XOF", "XPF", "YER", "ZAR", "ZMW", "ZWD",
}

var currency = `(?:` + strings.Join(currencies, "|") + `)`

// Recognizer matches one line shape against a complete line.
type Recognizer struct {
	Kind LineKind
	re   *regexp.Regexp
}

func newRecognizer(kind LineKind, pattern string) *Recognizer {
	return &Recognizer{
		Kind: kind,
		re:   regexp.MustCompile(`^(?:` + pattern + `)$`),
	}
}

// Pattern returns the anchored regular expression of the recognizer.
func (r *Recognizer) Pattern() string {
	return r.re.String()
}

// Match returns the captured fields when the whole line has the recognizer's
// shape, or nil.
func (r *Recognizer) Match(line string) *Match {
	loc := r.re.FindStringSubmatchIndex(line)
	if loc == nil {
		return nil
	}

	m := &Match{
		Kind:   r.Kind,
		Line:   line,
		fields: make(map[string]string),
		spans:  make(map[string]span),
	}
	for i, name := range r.re.SubexpNames() {
		if name == "" || loc[2*i] < 0 {
			continue
		}
		start, end := loc[2*i], loc[2*i+1]
		m.fields[name] = line[start:end]
		m.spans[name] = span{
			start: utf8.RuneCountInString(line[:start]),
			end:   utf8.RuneCountInString(line[:end]),
		}
	}
	return m
}

// span holds character columns, not byte offsets, so that umlauts left of a
// field do not shift it against the table header.
type span struct {
	start int
	end   int
}

// Match is the result of a successful recognition.
type Match struct {
	Kind   LineKind
	Line   string
	fields map[string]string
	spans  map[string]span
}

// Field returns the raw text captured for name, or "" when absent.
func (m *Match) Field(name string) string {
	return m.fields[name]
}

// Has reports whether the optional field name participated in the match.
func (m *Match) Has(name string) bool {
	_, ok := m.fields[name]
	return ok
}

// Start returns the character column at which field name begins, or -1.
func (m *Match) Start(name string) int {
	s, ok := m.spans[name]
	if !ok {
		return -1
	}
	return s.start
}

// End returns the character column just after field name, or -1.
func (m *Match) End(name string) int {
	s, ok := m.spans[name]
	if !ok {
		return -1
	}
	return s.end
}

// Fields returns a copy of all captured fields.
func (m *Match) Fields() map[string]string {
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

func (m *Match) String() string {
	return fmt.Sprintf("%s%v", m.Kind, m.fields)
}

// Bank statement ("Kontoauszug") recognizers.
var (
	bankRange = newRecognizer(LineRange,
		`\s*Kontoauszug Nummer (?P<no>\d+) / (?P<year>\d{4}) vom (?P<from>`+date+`) bis (?P<to>`+date+`)`+trailer)
	bankAccount = newRecognizer(LineAccount,
		`\s*Kontonummer (?P<account>\d+) / IBAN (?P<iban>[A-Z0-9]+(?: [A-Z0-9]+)*)(?:\s{2,}.*|\s*)`)
	bankBalanceOld = newRecognizer(LineBalanceOld,
		`\s*ALTER KONTOSTAND\s*(?P<value>`+decimalValue+`) (?P<sign>`+signGlyph+`) EUR\s*`)
	bankBalanceNew = newRecognizer(LineBalanceNew,
		`\s*NEUER KONTOSTAND\s*(?P<value>`+decimalValue+`) (?P<sign>`+signGlyph+`) EUR\s*`)
	bankTableHeader = newRecognizer(LineTableHeader,
		`\s*(?P<booked>Bu.Tag)\s+(?P<valued>Wert)\s+(?P<comment>Wir haben für Sie gebucht)\s+(?P<minus>Belastung in EUR)\s+(?P<plus>Gutschrift in EUR)\s*`)
	bankTransaction = newRecognizer(LineTransaction,
		`\s*(?P<booked>`+dateNoYear+`)`+fieldGap+`(?P<valued>`+dateNoYear+`)`+fieldGap+`(?P<type>`+text+`)`+fieldGap+`(?P<value>`+decimalFixed+`)\s*`)
	bankDetail = newRecognizer(LineDetail,
		`(?:`+indent+`|`+dateNoYear+`\s+`+dateNoYear+`\s+)(?P<line>`+text+`)\s*`)
)

// BankRecognizers lists the bank statement recognizers in priority order.
var BankRecognizers = []*Recognizer{
	bankRange,
	bankAccount,
	bankBalanceOld,
	bankBalanceNew,
	bankTableHeader,
	bankTransaction,
	bankDetail,
}

// DefaultCommentIndent is the column at which card statements continue a
// transaction comment.
const DefaultCommentIndent = 18

// Credit card statement ("Kreditkartenabrechnung") recognizers.
var (
	cardBalanceOld = newRecognizer(LineBalanceOld,
		`\s*(?P<valued>`+date+`)\s+Saldo letzte Abrechnung\s+(?P<value>`+decimalValue+`)\s*(?P<sign>`+signGlyph+`)\s*`)
	cardMonthYear = newRecognizer(LineMonthYear,
		`\s*Abrechnung:\s+(?P<month>\S+) (?P<year>\d{4})`+trailer)
	cardRange = newRecognizer(LineRange,
		`\s*Ihre Abrechnung vom (?P<from>`+date+`) bis (?P<to>`+date+`)`+trailer)
	cardBalanceNew = newRecognizer(LineBalanceNew,
		`\s*Neuer Saldo\s*(?P<value>`+decimalValue+`)\s*(?P<sign>`+signGlyph+`)?\s*`)
	cardSubtotal = newRecognizer(LineSubtotal,
		`\s*(?:Zwischensumme|Übertrag von) Seite \d+\s+(?P<value>`+decimalValue+`)\s*(?P<sign>`+signGlyph+`)\s*`)
	cardForeignTransaction = newRecognizer(LineTransaction,
		`(?P<booked>`+date+`)\s+(?P<valued>`+date+`)\s+(?P<comment>`+text+`)\s+(?P<currency>`+currency+`)\s+`+
			`(?P<foreign>`+decimalValue+`)\s+(?P<rate>`+decimalValue+`)\s+(?P<value>`+decimalValue+`)\s*(?P<sign>`+signGlyph+`)\s*`)
	cardTransaction = newRecognizer(LineTransaction,
		`(?P<booked>`+date+`)?\s+(?P<valued>`+date+`)?\s+(?P<comment>`+text+`)\s+(?P<value>`+decimalValue+`)\s*(?P<sign>`+signGlyph+`)\s*`)

	// CardAccount is checked on every card statement line regardless of
	// how the line was classified otherwise.
	CardAccount = newRecognizer(LineAccount,
		`.*(?:DKB-VISA-Card:|VISA\sCard-Nummer:)\s*(?P<account>`+cardNumber+`).*`)
)

// ExtendedComment recognizes comment continuation lines whose content starts
// exactly at column indent.
func ExtendedComment(indent int) *Recognizer {
	return newRecognizer(LineExtendedComment, fmt.Sprintf(`\s{%d}(?P<comment>\S.*?)\s*`, indent))
}

// CardRecognizers lists the card statement recognizers in priority order.
// The foreign currency row comes before the plain row because the plain
// shape also accepts most foreign rows.
func CardRecognizers(commentIndent int) []*Recognizer {
	return []*Recognizer{
		cardBalanceOld,
		cardMonthYear,
		cardRange,
		cardBalanceNew,
		cardSubtotal,
		cardForeignTransaction,
		cardTransaction,
		ExtendedComment(commentIndent),
	}
}

// Classify tries recognizers in order and returns the first match, or nil
// when the line is noise.
func Classify(recognizers []*Recognizer, line string) *Match {
	for _, r := range recognizers {
		if m := r.Match(line); m != nil {
			return m
		}
	}
	return nil
}
