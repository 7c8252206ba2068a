package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/yurifrl/dkbparse/pkg/annotate"
	"github.com/yurifrl/dkbparse/pkg/models"
)

const dateLayout = "2006-01-02"

var schema = []string{`
CREATE TABLE IF NOT EXISTS statements (
	kind TEXT NOT NULL,
	account TEXT NOT NULL,
	year INTEGER NOT NULL,
	number INTEGER NOT NULL,
	month TEXT NOT NULL DEFAULT '',
	iban TEXT NOT NULL DEFAULT '',
	period_from TEXT,
	period_to TEXT,
	opening TEXT,
	closing TEXT,
	file TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (kind, account, year, number)
)`, `
CREATE TABLE IF NOT EXISTS transactions (
	account TEXT NOT NULL,
	year INTEGER NOT NULL,
	statement INTEGER NOT NULL,
	number INTEGER NOT NULL,
	tx_key TEXT NOT NULL,
	booked TEXT NOT NULL,
	valued TEXT NOT NULL,
	type TEXT NOT NULL,
	value TEXT NOT NULL,
	payee TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT '',
	currency TEXT NOT NULL DEFAULT '',
	foreign_value TEXT,
	rate TEXT,
	label TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (account, year, statement, number)
)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_key ON transactions(tx_key)`,
}

// Store persists parsed statements in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

func Open(ctx context.Context, logger *log.Logger, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	logger.Debug("store initialized", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveStatement replaces the statement and all of its transactions.
func (s *Store) SaveStatement(ctx context.Context, st *models.Statement, txs []*models.Transaction) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO statements
			(kind, account, year, number, month, iban, period_from, period_to, opening, closing, file, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, string(st.Kind), st.Account, st.Year, st.Number, st.Month, st.IBAN,
		nullDate(st.Period.From), nullDate(st.Period.To), nullDecimal(st.Opening), nullDecimal(st.Closing), st.File)
	if err != nil {
		return fmt.Errorf("failed to save statement %s: %w", st, err)
	}

	accounts := map[string]bool{st.Account: true}
	for _, t := range txs {
		accounts[t.Account] = true
	}
	for account := range accounts {
		_, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE account = ? AND year = ? AND statement = ?`,
			account, st.Year, st.Number)
		if err != nil {
			return fmt.Errorf("failed to clear statement %s: %w", st, err)
		}
	}

	for _, t := range txs {
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO transactions
				(account, year, statement, number, tx_key, booked, valued, type, value, payee, comment, currency, foreign_value, rate, label)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.Account, t.Year, t.Statement, t.Number, annotate.Key(t),
			t.Booked.Format(dateLayout), t.Valued.Format(dateLayout), t.Type, t.Value.StringFixed(2),
			t.Payee, t.Comment, t.Currency, nullDecimal(t.Foreign), nullDecimal(t.Rate), t.Label)
		if err != nil {
			return fmt.Errorf("failed to save transaction %s/%s: %w", t.StatementID(), t.NumberID(), err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.logger.Debug("statement saved", "statement", st.String(), "transactions", len(txs))
	return nil
}

// Transactions returns the stored transactions of account in statement
// order. An empty account returns all of them.
func (s *Store) Transactions(ctx context.Context, account string) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, year, statement, number, booked, valued, type, value, payee, comment, currency, foreign_value, rate, label
		FROM transactions
		WHERE ? = '' OR account = ?
		ORDER BY account, year, statement, number
	`, account, account)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Statements returns the number of stored statements per account.
func (s *Store) Statements(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account, COUNT(*) FROM statements GROUP BY account`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var account string
		var n int
		if err := rows.Scan(&account, &n); err != nil {
			return nil, err
		}
		out[account] = n
	}
	return out, rows.Err()
}

func scanTransaction(rows *sql.Rows) (*models.Transaction, error) {
	var (
		t              models.Transaction
		booked, valued string
		value          string
		foreign, rate  sql.NullString
	)
	err := rows.Scan(&t.Account, &t.Year, &t.Statement, &t.Number, &booked, &valued, &t.Type, &value,
		&t.Payee, &t.Comment, &t.Currency, &foreign, &rate, &t.Label)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if t.Booked, err = time.Parse(dateLayout, booked); err != nil {
		return nil, err
	}
	if t.Valued, err = time.Parse(dateLayout, valued); err != nil {
		return nil, err
	}
	if t.Value, err = decimal.NewFromString(value); err != nil {
		return nil, err
	}
	if t.Foreign, err = scanDecimal(foreign); err != nil {
		return nil, err
	}
	if t.Rate, err = scanDecimal(rate); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}
