package executors

import (
	"fmt"

	"github.com/brunomvsouza/ynab.go/api"
	"github.com/brunomvsouza/ynab.go/api/transaction"

	"github.com/yurifrl/dkbparse/pkg/annotate"
	"github.com/yurifrl/dkbparse/pkg/models"
	"github.com/yurifrl/dkbparse/pkg/ynab"
)

// Status indicates the reconciliation result for a local transaction.
type Status int

const (
	Synced Status = iota
	ToAdd
)

// Entry links a local transaction with its remote counterpart (if any) and
// records the reconciliation status.
type Entry struct {
	Local  *models.Transaction
	Remote *ynab.Transaction // nil when status == ToAdd
	Status Status
}

// RemoteCustomID is a helper that returns the remote CustomID when present.
func (e Entry) RemoteCustomID() string {
	if e.Remote == nil {
		return ""
	}
	return e.Remote.CustomID()
}

type Report struct {
	Items  []Entry
	toSync []*models.Transaction
}

// CustomID is the ID a local transaction carries in its YNAB memo.
func CustomID(t *models.Transaction) string {
	return ynab.CustomID(annotate.Key(t))
}

// Milliunits converts a value to YNAB milliunits without rounding.
func Milliunits(t *models.Transaction) int64 {
	return t.Value.Shift(3).IntPart()
}

// BuildReport matches local transactions against remote ones, either by the
// custom ID in the memo or by amount, payee and date. Each remote
// transaction matches at most one local one.
func BuildReport(local []*models.Transaction, remote []*ynab.Transaction, useCustomID bool) *Report {
	items := make([]Entry, 0, len(local))
	toSync := make([]*models.Transaction, 0)

	idx := make(map[string][]*ynab.Transaction, len(remote))
	for _, rt := range remote {
		k := remoteKey(rt, useCustomID)
		idx[k] = append(idx[k], rt)
	}

	for _, lt := range local {
		k := localKey(lt, useCustomID)
		var found *ynab.Transaction
		if candidates := idx[k]; len(candidates) > 0 {
			found = candidates[0]
			idx[k] = candidates[1:]
		}

		status := ToAdd
		if found != nil {
			status = Synced
		}
		items = append(items, Entry{Local: lt, Remote: found, Status: status})
		if status == ToAdd {
			toSync = append(toSync, lt)
		}
	}

	return &Report{Items: items, toSync: toSync}
}

func localKey(t *models.Transaction, useCustomID bool) string {
	if useCustomID {
		return CustomID(t)
	}
	return fmt.Sprintf("%d|%s|%s", Milliunits(t), ynab.PayeeName(t.Description()), t.Valued.Format("2006-01-02"))
}

func remoteKey(t *ynab.Transaction, useCustomID bool) string {
	if useCustomID {
		return t.CustomID()
	}
	payee := ""
	if t.PayeeName != nil {
		payee = *t.PayeeName
	}
	return fmt.Sprintf("%d|%s|%s", t.Amount, payee, t.Date.Format("2006-01-02"))
}

// InSyncCount returns how many local transactions already exist remotely.
func (r *Report) InSyncCount() int {
	return len(r.Items) - len(r.toSync)
}

// MissingCount returns how many local transactions still need to be created.
func (r *Report) MissingCount() int {
	return len(r.toSync)
}

// TransactionsToSync returns the subset of local transactions missing remotely.
func (r *Report) TransactionsToSync() []*models.Transaction {
	return r.toSync
}

// Payloads converts the transactions that still need syncing into YNAB API payloads.
func (r *Report) Payloads(accountID string) ([]transaction.PayloadTransaction, error) {
	out := make([]transaction.PayloadTransaction, 0, len(r.toSync))
	for _, lt := range r.toSync {
		date, err := api.DateFromString(lt.Valued.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		payee := ynab.PayeeName(lt.Description())
		memo := ynab.Memo(CustomID(lt), lt.Comment)
		out = append(out, transaction.PayloadTransaction{
			AccountID: accountID,
			Date:      date,
			Amount:    Milliunits(lt),
			Cleared:   transaction.ClearingStatusCleared,
			Approved:  true,
			PayeeName: &payee,
			Memo:      &memo,
		})
	}
	return out, nil
}
