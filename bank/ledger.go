package bank

import (
	"fmt"
	"io"
	"sync"
	"time"

	"bankd/models"
	"bankd/store"
)

// Ledger is the append-only transaction log and the write-ahead commit point
// for every balance mutation. Append assigns strictly increasing ids and
// fsyncs before returning, so a transfer's two entries are durable as a unit
// before either account record changes. Queries run against a point-in-time
// snapshot under a shared lock.
type Ledger struct {
	mu    sync.RWMutex
	store *store.Store
	seq   *store.Sequence

	// In-flight tracking: an entry is pending between its durable append and
	// the moment its balance effect reaches the account file. The recovery
	// checkpoint may only advance to the low-water mark below all pending
	// ids, otherwise a crash could strand a logged-but-unapplied transfer
	// behind the checkpoint.
	pmu     sync.Mutex
	pending map[int64]struct{}
	high    int64
}

// NewLedger wraps an open transaction record store and its id sequence.
// high should be the highest id already present in the log.
func NewLedger(st *store.Store, seq *store.Sequence, high int64) *Ledger {
	return &Ledger{store: st, seq: seq, pending: make(map[int64]struct{}), high: high}
}

// Append assigns ids and the current timestamp to the given entries and
// appends them to the log with a single fsync. Holding the exclusive ledger
// lock across id allocation and the write keeps file order identical to id
// order under concurrency. The returned entries carry their assigned ids and
// are pending until Applied is called.
func (l *Ledger) Append(entries ...models.Transaction) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().Unix()
	recs := make([]interface{}, len(entries))
	ids := make([]int64, len(entries))
	for i := range entries {
		id, err := l.seq.Next()
		if err != nil {
			return nil, err
		}
		entries[i].ID = id
		entries[i].Timestamp = now
		recs[i] = entries[i]
		ids[i] = id
	}
	l.markPending(ids)

	if _, err := l.store.Append(recs...); err != nil {
		// The entries never became durable; unblock the checkpoint.
		l.clearPending(ids)
		return nil, err
	}
	return entries, nil
}

// Applied marks the entries' balance effects as persisted and returns the
// new checkpoint low-water mark: every id at or below it is both logged and
// applied.
func (l *Ledger) Applied(entries []models.Transaction) int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return l.clearPending(ids)
}

func (l *Ledger) markPending(ids []int64) {
	l.pmu.Lock()
	defer l.pmu.Unlock()
	for _, id := range ids {
		l.pending[id] = struct{}{}
		if id > l.high {
			l.high = id
		}
	}
}

func (l *Ledger) clearPending(ids []int64) int64 {
	l.pmu.Lock()
	defer l.pmu.Unlock()
	for _, id := range ids {
		delete(l.pending, id)
	}
	return l.floorLocked()
}

func (l *Ledger) floorLocked() int64 {
	if len(l.pending) == 0 {
		return l.high
	}
	min := int64(0)
	for id := range l.pending {
		if min == 0 || id < min {
			min = id
		}
	}
	return min - 1
}

// Floor returns the current checkpoint low-water mark.
func (l *Ledger) Floor() int64 {
	l.pmu.Lock()
	defer l.pmu.Unlock()
	return l.floorLocked()
}

// History returns every entry for the given account in append order. The
// scan runs under a shared lock against a snapshot of the log, so it is
// restartable and side-effect-free; two calls with no intervening appends
// return identical results.
func (l *Ledger) History(account int32) ([]models.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.Transaction
	var rec models.Transaction
	err := l.store.Scan(&rec, func(int64) error {
		if rec.AccountID == account {
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// ScanAfter yields, in id order, every entry with id greater than after.
// Used by crash recovery before the engine accepts traffic.
func (l *Ledger) ScanAfter(after int64, fn func(models.Transaction) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var rec models.Transaction
	return l.store.Scan(&rec, func(int64) error {
		if rec.ID > after {
			return fn(rec)
		}
		return nil
	})
}

const (
	historyHeader = "ID    | Type          | Amount   | Old Bal  | New Bal  | Date & Time\n"
	historyRule   = "----------------------------------------------------------------------------------\n"
	historyEmpty  = "No transactions found for this account.\n"
)

// WriteHistory renders the account's transaction history as a text table on
// the reporting sink: a fixed header, one row per entry in append order, or
// a literal no-transactions line when nothing matches.
func (l *Ledger) WriteHistory(sink io.Writer, account int32) error {
	entries, err := l.History(account)
	if err != nil {
		return err
	}
	fmt.Fprintf(sink, "\n--- Transaction History for Account %d ---\n", account)
	io.WriteString(sink, historyHeader)
	io.WriteString(sink, historyRule)
	if len(entries) == 0 {
		io.WriteString(sink, historyEmpty)
		return nil
	}
	for _, e := range entries {
		ts := time.Unix(e.Timestamp, 0).Format("2006-01-02 15:04:05")
		fmt.Fprintf(sink, "%-5d | %-13s | %-8.2f | %-8.2f | %-8.2f | %s\n",
			e.ID, e.Type, e.Amount, e.OldBalance, e.NewBalance, ts)
	}
	return nil
}

// Close closes the log file and sequence.
func (l *Ledger) Close() error {
	if err := l.store.Close(); err != nil {
		l.seq.Close()
		return err
	}
	return l.seq.Close()
}
