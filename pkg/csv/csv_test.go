package csv

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/dkbparse/pkg/models"
)

func sample() []*models.Transaction {
	return []*models.Transaction{
		{
			Account:   "0000001234567890",
			Year:      2024,
			Statement: 3,
			Number:    1,
			Booked:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Valued:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Type:      "Überweisung",
			Value:     decimal.RequireFromString("-1234.56"),
			Payee:     "Miete",
			Comment:   "Miete Januar, Wohnung",
		},
		{
			Account:   "4998XXXXXXXX1234",
			Year:      2024,
			Statement: 3,
			Number:    2,
			Booked:    time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			Valued:    time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			Type:      models.CardType,
			Value:     decimal.RequireFromString("-20"),
			Comment:   "AMAZON.COM",
			Currency:  "USD",
			Foreign:   decimal.NewNullDecimal(decimal.RequireFromString("21.70")),
			Rate:      decimal.NewNullDecimal(decimal.RequireFromString("1.085")),
			Label:     "shopping",
		},
	}
}

func TestCreate(t *testing.T) {
	data, err := Create(sample(), OrderValuedDesc, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "account,year,statement,transaction,booked,valued,value,type,payee,comment,currency,foreign,rate,label", lines[0])
	// newest valued date first
	assert.Equal(t, "4998XXXXXXXX1234,2024,03,002,2024-03-05,2024-03-06,-20.00,card,,AMAZON.COM,USD,21.7,1.085,shopping", lines[1])
	assert.Equal(t, `0000001234567890,2024,03,001,2024-03-01,2024-03-01,-1234.56,Überweisung,Miete,"Miete Januar, Wohnung",,,,`, lines[2])
}

func TestCreateKeepsOrder(t *testing.T) {
	data, err := Create(sample(), OrderNone, nil)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "0000001234567890"))
}

func TestCreateFilter(t *testing.T) {
	onlyCard := func(tx *models.Transaction) bool { return tx.Type == models.CardType }

	data, err := Create(sample(), OrderValuedDesc, onlyCard)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Miete")
	assert.Contains(t, string(data), "AMAZON.COM")
}

func TestSortByValuedIsStable(t *testing.T) {
	txs := sample()
	txs[1].Valued = txs[0].Valued
	SortByValued(txs)
	assert.Equal(t, 1, txs[0].Number)
	assert.Equal(t, 2, txs[1].Number)
}

func TestReadBack(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), OrderNone, nil))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	want := sample()
	for i := range want {
		assert.Equal(t, want[i].Account, got[i].Account)
		assert.Equal(t, want[i].Number, got[i].Number)
		assert.Equal(t, want[i].Statement, got[i].Statement)
		assert.Equal(t, want[i].Booked, got[i].Booked)
		assert.Equal(t, want[i].Valued, got[i].Valued)
		assert.Equal(t, want[i].Comment, got[i].Comment)
		assert.True(t, want[i].Value.Equal(got[i].Value))
	}
	assert.False(t, got[0].Foreign.Valid)
	assert.True(t, got[1].Rate.Decimal.Equal(decimal.RequireFromString("1.085")))
	assert.Equal(t, "shopping", got[1].Label)
}

func TestReadRoundsValues(t *testing.T) {
	in := "account,year,statement,transaction,booked,valued,value,type,payee,comment,currency,foreign,rate,label\n" +
		"0000001234567890,2024,03,001,2024-03-01,2024-03-01,-1.005,Lastschrift,,,,,,\n"

	got, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "-1.01", got[0].Value.StringFixed(2))
}

func TestReadInvalid(t *testing.T) {
	in := "account,year,statement,transaction,booked,valued,value,type,payee,comment,currency,foreign,rate,label\n" +
		"0000001234567890,2024,03,001,01.03.2024,2024-03-01,1,Lastschrift,,,,,,\n"

	_, err := Read(strings.NewReader(in))
	assert.ErrorContains(t, err, "line 2")
}
