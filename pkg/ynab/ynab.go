package ynab

import (
	"strings"
	"unicode/utf8"

	"github.com/brunomvsouza/ynab.go"
	"github.com/brunomvsouza/ynab.go/api/account"
	"github.com/brunomvsouza/ynab.go/api/budget"
	"github.com/brunomvsouza/ynab.go/api/transaction"
)

const (
	// CustomIDLength is the number of hex digits of a transaction key kept
	// in the memo.
	CustomIDLength = 16

	maxMemo  = 200
	maxPayee = 50
)

// YNABClient wraps the upstream YNAB client
type YNABClient struct {
	client ynab.ClientServicer
}

// TransactionService wraps the upstream transaction service
type TransactionService struct {
	client   *YNABClient
	upstream *transaction.Service
}

// Transaction wraps the core YNAB transaction adding CustomID extracted from
// the memo first CSV field.
type Transaction struct {
	*transaction.Transaction
	customID string
}

// NewTransaction wraps a remote transaction and reads its custom ID.
func NewTransaction(tx *transaction.Transaction) *Transaction {
	return &Transaction{Transaction: tx, customID: extractCustomID(tx)}
}

func extractCustomID(tx *transaction.Transaction) string {
	if tx == nil || tx.Memo == nil {
		return ""
	}
	memo := strings.Trim(*tx.Memo, "\"")
	if idx := strings.Index(memo, ","); idx > 0 {
		return memo[:idx]
	}
	return ""
}

// CustomID shortens a transaction key to the ID stored in memos.
func CustomID(key string) string {
	if len(key) > CustomIDLength {
		return key[:CustomIDLength]
	}
	return key
}

// Memo prefixes text with the custom ID so that it can be recognized on the
// next sync. The result fits the YNAB memo limit.
func Memo(customID, text string) string {
	return truncate(customID+","+text, maxMemo)
}

// PayeeName fits name into the YNAB payee limit.
func PayeeName(name string) string {
	return truncate(name, maxPayee)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func New(token string) *YNABClient {
	return &YNABClient{
		client: ynab.NewClient(token),
	}
}

func (c *YNABClient) Transaction() *TransactionService {
	return &TransactionService{
		client:   c,
		upstream: c.client.Transaction(),
	}
}

func (c *YNABClient) Budget() *budget.Service {
	return c.client.Budget()
}

func (c *YNABClient) Account() *account.Service {
	return c.client.Account()
}

func (ts *TransactionService) GetTransactionsByAccount(budgetID, accountID string, filter *transaction.Filter) ([]*Transaction, error) {
	remoteTransactions, err := ts.upstream.GetTransactionsByAccount(budgetID, accountID, filter)
	if err != nil {
		return nil, err
	}

	transactions := make([]*Transaction, 0, len(remoteTransactions))
	for _, tx := range remoteTransactions {
		if tx.Deleted {
			continue
		}
		transactions = append(transactions, NewTransaction(tx))
	}
	return transactions, nil
}

// CreateTransactions creates multiple transactions in one API call
func (ts *TransactionService) CreateTransactions(budgetID string, payloads []transaction.PayloadTransaction) error {
	if len(payloads) == 0 {
		return nil
	}
	_, err := ts.upstream.CreateTransactions(budgetID, payloads)
	return err
}

func (t *Transaction) CustomID() string {
	return t.customID
}
