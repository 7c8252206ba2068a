package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizersAreAnchored(t *testing.T) {
	for _, r := range append(BankRecognizers, CardRecognizers(DefaultCommentIndent)...) {
		assert.True(t, strings.HasPrefix(r.Pattern(), "^(?:"), r.Kind)
		assert.True(t, strings.HasSuffix(r.Pattern(), ")$"), r.Kind)
	}
}

func TestClassifyBank(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind LineKind
	}{
		{"range", "  Kontoauszug Nummer 003 / 2024 vom 01.03.2024 bis 31.03.2024", LineRange},
		{"range with trailer", "Kontoauszug Nummer 1 / 2024 vom 01.03.24 bis 31.03.24  Seite 1 von 2", LineRange},
		{"account", "Kontonummer 1234567890 / IBAN DE12 1203 0000 1234 5678 90", LineAccount},
		{"old balance", "   ALTER KONTOSTAND   1.000,00 H EUR", LineBalanceOld},
		{"new balance", "   NEUER KONTOSTAND   765,44 S EUR", LineBalanceNew},
		{"header", "Bu.Tag  Wert    Wir haben für Sie gebucht     Belastung in EUR    Gutschrift in EUR", LineTableHeader},
		{"transaction", "01.03.  01.03.  Überweisung   1.234,56", LineTransaction},
		{"detail", "                Miete", LineDetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Classify(BankRecognizers, tt.line)
			require.NotNil(t, m)
			assert.Equal(t, tt.kind, m.Kind)
		})
	}
}

func TestClassifyNoise(t *testing.T) {
	lines := []string{
		"",
		"Seite 1 von 2",
		"x",
		// a prefix match is not enough
		"Kontonummer abc",
	}
	for _, line := range lines {
		assert.Nil(t, Classify(BankRecognizers, line), line)
	}
}

func TestRecognizerFieldsUseCharacterColumns(t *testing.T) {
	m := bankTransaction.Match("01.03.  01.03.  Überweisung   1.234,56")
	require.NotNil(t, m)

	assert.Equal(t, "Überweisung", m.Field("type"))
	assert.Equal(t, "1.234,56", m.Field("value"))
	assert.Equal(t, 16, m.Start("type"))
	assert.Equal(t, 30, m.Start("value"))
	assert.Equal(t, 38, m.End("value"))
	assert.Equal(t, -1, m.Start("missing"))
	assert.False(t, m.Has("missing"))
}

func TestCardTransactionNeedsSign(t *testing.T) {
	plain := CardRecognizers(DefaultCommentIndent)

	m := Classify(plain, "04.03.24 04.03.24 REWE Markt Berlin        12,00 S")
	require.NotNil(t, m)
	assert.Equal(t, LineTransaction, m.Kind)
	assert.Equal(t, "S", m.Field("sign"))

	m = Classify(plain, "04.03.24 04.03.24 REWE Markt Berlin        12,00")
	if m != nil {
		assert.NotEqual(t, LineTransaction, m.Kind)
	}
}

func TestCardTransactionOptionalDates(t *testing.T) {
	m := cardTransaction.Match("                  Gutschrift Erstattung      2,00 H")
	require.NotNil(t, m)
	assert.False(t, m.Has("booked"))
	assert.False(t, m.Has("valued"))
	assert.Equal(t, "Gutschrift Erstattung", m.Field("comment"))
}

func TestForeignTransactionBeforePlain(t *testing.T) {
	m := Classify(CardRecognizers(DefaultCommentIndent),
		"05.03.24 06.03.24 AMAZON.COM                USD   21,70   1,0850      20,00 S")
	require.NotNil(t, m)
	assert.True(t, m.Has("currency"))
	assert.Equal(t, "USD", m.Field("currency"))
	assert.Equal(t, "21,70", m.Field("foreign"))
	assert.Equal(t, "1,0850", m.Field("rate"))
	assert.Equal(t, "AMAZON.COM", m.Field("comment"))
}

func TestExtendedCommentIndent(t *testing.T) {
	r := ExtendedComment(18)
	assert.NotNil(t, r.Match(strings.Repeat(" ", 18)+"Filiale 123"))
	assert.Nil(t, r.Match(strings.Repeat(" ", 17)+"Filiale 123"))
	assert.Nil(t, r.Match(strings.Repeat(" ", 19)+"Filiale 123"))

	m := ExtendedComment(4).Match("    Filiale 123   ")
	require.NotNil(t, m)
	assert.Equal(t, "Filiale 123", m.Field("comment"))
}

func TestCardAccount(t *testing.T) {
	tests := []string{
		"    DKB-VISA-Card:  4998 XXXX XXXX 1234",
		"Karteninhaber: Max   VISA Card-Nummer: 4998 XXXX XXXX 1234  Seite 1",
	}
	for _, line := range tests {
		m := CardAccount.Match(line)
		require.NotNil(t, m, line)
		assert.Equal(t, "4998 XXXX XXXX 1234", m.Field("account"))
	}
}
