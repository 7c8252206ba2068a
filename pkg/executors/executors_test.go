package executors

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yurifrl/dkbparse/pkg/config"
	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/plan"
	"github.com/yurifrl/dkbparse/pkg/service"
	"github.com/yurifrl/dkbparse/pkg/ynab"
)

type fakeRemote struct {
	existing map[string][]*ynab.Transaction
	created  map[string][]transaction.PayloadTransaction
}

func (f *fakeRemote) GetTransactionsByAccount(_, accountID string, _ *transaction.Filter) ([]*ynab.Transaction, error) {
	return f.existing[accountID], nil
}

func (f *fakeRemote) CreateTransactions(_ string, payloads []transaction.PayloadTransaction) error {
	for _, p := range payloads {
		f.created[p.AccountID] = append(f.created[p.AccountID], p)
	}
	return nil
}

func local(value, payee string, day int) *models.Transaction {
	d := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	return &models.Transaction{
		Account: "0000001234567890", Year: 2024, Statement: 3, Number: day,
		Booked: d, Valued: d, Type: "Lastschrift",
		Value: decimal.RequireFromString(value), Payee: payee, Comment: payee + " Abo",
	}
}

func remote(t *testing.T, amount int64, payee, memo string, day int) *ynab.Transaction {
	t.Helper()
	date, err := api.DateFromString(time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"))
	require.NoError(t, err)
	return ynab.NewTransaction(&transaction.Transaction{
		Date:      date,
		Amount:    amount,
		PayeeName: &payee,
		Memo:      &memo,
	})
}

func TestMilliunits(t *testing.T) {
	assert.Equal(t, int64(-1234560), Milliunits(local("-1234.56", "x", 1)))
	assert.Equal(t, int64(100), Milliunits(local("0.10", "x", 1)))
}

func TestBuildReportByFields(t *testing.T) {
	locals := []*models.Transaction{
		local("-9.99", "Netflix", 1),
		local("-9.99", "Netflix", 1),
		local("-12.00", "Spotify", 2),
	}
	remotes := []*ynab.Transaction{remote(t, -9990, "Netflix", "", 1)}

	r := BuildReport(locals, remotes, false)
	assert.Equal(t, 1, r.InSyncCount())
	assert.Equal(t, 2, r.MissingCount())
	assert.Equal(t, Synced, r.Items[0].Status)
	// a remote transaction only covers one local one
	assert.Equal(t, ToAdd, r.Items[1].Status)
	assert.Equal(t, ToAdd, r.Items[2].Status)
}

func TestBuildReportByCustomID(t *testing.T) {
	lt := local("-9.99", "Netflix", 1)
	remotes := []*ynab.Transaction{remote(t, -1, "renamed", CustomID(lt)+",edited memo", 20)}

	r := BuildReport([]*models.Transaction{lt}, remotes, true)
	assert.Equal(t, 1, r.InSyncCount())
	assert.Equal(t, CustomID(lt), r.Items[0].RemoteCustomID())
}

func TestPayloads(t *testing.T) {
	lt := local("-9.99", "Netflix", 1)
	r := BuildReport([]*models.Transaction{lt}, nil, true)

	payloads, err := r.Payloads("acc-1")
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	p := payloads[0]
	assert.Equal(t, "acc-1", p.AccountID)
	assert.Equal(t, int64(-9990), p.Amount)
	assert.Equal(t, "Netflix", *p.PayeeName)
	assert.Equal(t, CustomID(lt)+",Netflix Abo", *p.Memo)
	assert.Equal(t, "2024-03-01", p.Date.Format("2006-01-02"))

	// the memo round trips to the same custom ID
	memo := *p.Memo
	rt := ynab.NewTransaction(&transaction.Transaction{Memo: &memo})
	assert.Equal(t, CustomID(lt), rt.CustomID())
}

func setupExecutor(t *testing.T, remote *fakeRemote, out io.Writer) *Executor {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{
		"Kontoauszug_1234567890_Nr_2024_003_per_2024_04_01.txt",
		"Kreditkartenabrechnung_4998xxxxxxxx1234_per_2024_03_31.txt",
	} {
		data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, name), data, 0o644))
	}

	p := &plan.Plan{
		YNAB: plan.YNABConfig{
			BudgetID:    "budget-1",
			UseCustomID: true,
			Accounts:    map[string]string{"0000001234567890": "acc-giro"},
		},
		Statements: []plan.Statement{{Dir: root}},
	}

	logger := log.New(io.Discard)
	processor, err := service.NewProcessor(config.New(""), logger)
	require.NoError(t, err)
	return New(logger, p, processor, remote, out)
}

func TestPlanAndApply(t *testing.T) {
	fake := &fakeRemote{
		existing: map[string][]*ynab.Transaction{},
		created:  map[string][]transaction.PayloadTransaction{},
	}
	var out bytes.Buffer
	e := setupExecutor(t, fake, &out)

	reports, err := e.Plan(context.Background())
	require.NoError(t, err)
	// the card account is not mapped
	require.Len(t, reports, 1)
	assert.Equal(t, "acc-giro", reports[0].AccountID)
	assert.Equal(t, 2, reports[0].MissingCount())
	assert.Contains(t, out.String(), "2 transaction(s) will be added")
	assert.Empty(t, fake.created)

	created, err := e.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	require.Len(t, fake.created["acc-giro"], 2)

	// feed the created transactions back as remote ones
	for _, p := range fake.created["acc-giro"] {
		fake.existing["acc-giro"] = append(fake.existing["acc-giro"], ynab.NewTransaction(&transaction.Transaction{
			Date: p.Date, Amount: p.Amount, PayeeName: p.PayeeName, Memo: p.Memo,
		}))
	}
	created, err = e.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
