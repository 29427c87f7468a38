package tellerd

import (
	"fmt"
	"time"

	"pkt.systems/tellerd/internal/ids"
)

const (
	// amountCeiling is the per-transaction limit for transfers and payments.
	amountCeiling = 10_000.00

	dateLayout = "2006-01-02"

	txnKindTransfer = "transfer"
	txnKindPayment  = "payment"

	// globalKeyCustomerID is the Global-store key holding the authenticated
	// customer id. Written only by PIN verification; re-authentication
	// replaces the value.
	globalKeyCustomerID = "customer_id"
)

// pendingTransaction is a staged money movement awaiting confirm or cancel.
// It lives in the Local store under a kind-prefixed key and is consumed
// exactly once on resolution.
type pendingTransaction struct {
	TransactionID string
	Kind          string
	CustomerID    string
	FromAccountID string
	ToAccountID   string
	LoanID        string
	Amount        float64
	Date          string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func pendingKey(kind, transactionID string) string {
	return kind + "_" + transactionID
}

// stagePending stores a fresh pending transaction for the thread and returns
// it with id and timestamps filled in.
func (s *server) stagePending(threadID string, txn pendingTransaction) pendingTransaction {
	now := s.clk.Now()
	txn.TransactionID = ids.Transaction()
	txn.CreatedAt = now
	txn.ExpiresAt = now.Add(s.cfg.TransactionTTL)
	s.local.Set(threadID, pendingKey(txn.Kind, txn.TransactionID), txn)
	s.txnLog.Info("txn.staged",
		"kind", txn.Kind,
		"transaction_id", txn.TransactionID,
		"thread_id", threadID,
		"expires_at", txn.ExpiresAt,
	)
	s.metrics.transactionStaged(txn.Kind)
	return txn
}

type resolveStatus int

const (
	// resolveTaken: the entry existed, ownership matched, and it was removed.
	resolveTaken resolveStatus = iota
	// resolveMissing: no live entry. Covers never-existed, already-consumed
	// and expired; callers must report all three identically.
	resolveMissing
	// resolveNotOwned: the entry exists but belongs to another customer. It
	// stays in the store for the legitimate owner.
	resolveNotOwned
)

// takePending atomically consumes the pending transaction for (thread, kind,
// id) when customerID owns it. Existence check, ownership check and delete
// run as one store operation so concurrent confirm/cancel calls resolve a
// transaction at most once. Expiry is advisory: it is only evaluated here,
// and an expired entry is consumed and reported as missing.
func (s *server) takePending(threadID, kind, transactionID, customerID string) (pendingTransaction, resolveStatus) {
	value, taken, found := s.local.TakeIf(threadID, pendingKey(kind, transactionID), func(value any) bool {
		txn, ok := value.(pendingTransaction)
		return ok && txn.CustomerID == customerID
	})
	if !found {
		return pendingTransaction{}, resolveMissing
	}
	if !taken {
		s.txnLog.Warn("txn.resolve.ownership_mismatch",
			"kind", kind,
			"transaction_id", transactionID,
			"thread_id", threadID,
		)
		return pendingTransaction{}, resolveNotOwned
	}
	txn := value.(pendingTransaction)
	if s.clk.Now().After(txn.ExpiresAt) {
		s.txnLog.Info("txn.resolve.expired",
			"kind", kind,
			"transaction_id", transactionID,
			"thread_id", threadID,
			"expired_at", txn.ExpiresAt,
		)
		return pendingTransaction{}, resolveMissing
	}
	return txn, resolveTaken
}

// dateWindow returns the inclusive [min, max] calendar window starting
// minOffsetDays from today and ending maxOffsetDays from today.
func (s *server) dateWindow(minOffsetDays, maxOffsetDays int) (time.Time, time.Time) {
	today := s.clk.Now().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, minOffsetDays), today.AddDate(0, 0, maxOffsetDays)
}

// parseDateInWindow validates an ISO 8601 date against an inclusive window
// and returns a user-facing error message on failure.
func parseDateInWindow(value string, min, max time.Time) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a valid date; use YYYY-MM-DD", value)
	}
	if parsed.Before(min) || parsed.After(max) {
		return time.Time{}, fmt.Errorf("the date must be between %s and %s",
			min.Format(dateLayout), max.Format(dateLayout))
	}
	return parsed, nil
}
