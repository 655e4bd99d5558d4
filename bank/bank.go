// Package bank implements the banking engine: accounts, transfers, the
// transaction ledger, users, loans, feedback and sessions, all persisted as
// fixed-size binary records. Mutual exclusion is an in-process latch table
// keyed by account number; durability is a write-ahead ledger append plus a
// recovery checkpoint, so a crash between the log write and the account
// write is healed on the next open.
package bank

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"bankd/models"
	"bankd/store"
)

const (
	userFile        = "users.dat"
	accountFile     = "accounts.dat"
	loanFile        = "loans.dat"
	transactionFile = "transactions.dat"
	feedbackFile    = "feedback.dat"
	checkpointFile  = "accounts.ckpt"

	userSeqFile = "users.seq"
	loanSeqFile = "loans.seq"
	txSeqFile   = "transactions.seq"
)

// Bank owns every record store and coordinates access to them. All exported
// methods are safe for concurrent use.
type Bank struct {
	dir string

	accounts *store.Store
	latches  *store.Latches
	acctMu   sync.RWMutex // guards acctIdx and account creation
	acctIdx  map[int32]int64

	ledger *Ledger

	users   *store.Store
	userMu  sync.RWMutex
	userIdx map[int32]int64
	userSeq *store.Sequence

	loans   *store.Store
	loanMu  sync.Mutex
	loanIdx map[int32]int64
	loanSeq *store.Sequence

	feedback *store.Store
	fbMu     sync.Mutex

	ckptMu sync.Mutex
	ckpt   int64

	Sessions *SessionRegistry
}

// Open opens (creating on first use) every record file under dir, rebuilds
// the in-memory indexes, and replays any ledger entries past the checkpoint
// before returning. The returned Bank is ready for concurrent traffic.
func Open(dir string) (*Bank, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, errors.Wrapf(err, "bank: create data dir %s", dir)
	}
	b := &Bank{
		dir:      dir,
		latches:  store.NewLatches(),
		acctIdx:  make(map[int32]int64),
		userIdx:  make(map[int32]int64),
		loanIdx:  make(map[int32]int64),
		Sessions: NewSessionRegistry(defaultSessionCap),
	}

	var err error
	if b.accounts, err = store.Open(filepath.Join(dir, accountFile), models.Account{}); err != nil {
		return nil, err
	}
	var acct models.Account
	if err = b.accounts.Scan(&acct, func(i int64) error {
		b.acctIdx[acct.Number] = i
		return nil
	}); err != nil {
		return nil, err
	}

	txStore, err := store.Open(filepath.Join(dir, transactionFile), models.Transaction{})
	if err != nil {
		return nil, err
	}
	var maxTxID int64
	var tx models.Transaction
	if err = txStore.Scan(&tx, func(int64) error {
		if tx.ID > maxTxID {
			maxTxID = tx.ID
		}
		return nil
	}); err != nil {
		return nil, err
	}
	txSeq, err := store.OpenSequence(filepath.Join(dir, txSeqFile), maxTxID)
	if err != nil {
		return nil, err
	}
	b.ledger = NewLedger(txStore, txSeq, txSeq.Last())

	if b.users, err = store.Open(filepath.Join(dir, userFile), models.User{}); err != nil {
		return nil, err
	}
	var maxUserID int64
	var user models.User
	if err = b.users.Scan(&user, func(i int64) error {
		b.userIdx[user.ID] = i
		if int64(user.ID) > maxUserID {
			maxUserID = int64(user.ID)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if b.userSeq, err = store.OpenSequence(filepath.Join(dir, userSeqFile), maxUserID); err != nil {
		return nil, err
	}

	if b.loans, err = store.Open(filepath.Join(dir, loanFile), models.Loan{}); err != nil {
		return nil, err
	}
	var maxLoanID int64
	var loan models.Loan
	if err = b.loans.Scan(&loan, func(i int64) error {
		b.loanIdx[loan.ID] = i
		if int64(loan.ID) > maxLoanID {
			maxLoanID = int64(loan.ID)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if b.loanSeq, err = store.OpenSequence(filepath.Join(dir, loanSeqFile), maxLoanID); err != nil {
		return nil, err
	}

	if b.feedback, err = store.Open(filepath.Join(dir, feedbackFile), models.Feedback{}); err != nil {
		return nil, err
	}

	b.ckpt = b.readCheckpoint()
	if err = b.recover(); err != nil {
		return nil, err
	}
	return b, nil
}

// recover replays ledger entries past the checkpoint onto the account file.
// Each entry carries the resulting balance, so replay sets rather than
// re-computes and is idempotent. Runs single-threaded before Open returns.
func (b *Bank) recover() error {
	var replayed int
	last := b.ckpt
	err := b.ledger.ScanAfter(b.ckpt, func(e models.Transaction) error {
		idx, ok := b.acctIdx[e.AccountID]
		if !ok {
			// Log entry for an account record that never became durable.
			// Nothing to heal; the account itself was lost pre-creation.
			logrus.WithFields(logrus.Fields{"tx": e.ID, "account": e.AccountID}).
				Warn("recovery: ledger entry for unknown account, skipping")
			return nil
		}
		var acct models.Account
		if err := b.accounts.ReadAt(idx, &acct); err != nil {
			return err
		}
		acct.Balance = e.NewBalance
		if err := b.accounts.WriteAt(idx, acct); err != nil {
			return err
		}
		replayed++
		last = e.ID
		return nil
	})
	if err != nil {
		return err
	}
	if replayed > 0 {
		if err := b.accounts.Sync(); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{"entries": replayed, "through": last}).
			Info("recovery: replayed ledger entries")
	}
	return b.writeCheckpoint(last)
}

func (b *Bank) checkpointPath() string { return filepath.Join(b.dir, checkpointFile) }

func (b *Bank) readCheckpoint() int64 {
	buf, err := os.ReadFile(b.checkpointPath())
	if err != nil || len(buf) != 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(buf))
}

// writeCheckpoint persists the checkpoint atomically (tmp file + rename) so
// a crash mid-write leaves the previous checkpoint intact. Replaying below
// an old checkpoint is safe; replaying above a torn one would not be.
func (b *Bank) writeCheckpoint(id int64) error {
	b.ckptMu.Lock()
	defer b.ckptMu.Unlock()
	if id <= b.ckpt && b.ckpt != 0 {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(id))
	tmp := b.checkpointPath() + ".tmp"
	if err := os.WriteFile(tmp, buf[:], 0o666); err != nil {
		return errors.Wrap(err, "bank: write checkpoint")
	}
	if err := os.Rename(tmp, b.checkpointPath()); err != nil {
		return errors.Wrap(err, "bank: replace checkpoint")
	}
	b.ckpt = id
	return nil
}

// commit marks the entries applied and advances the checkpoint to the new
// low-water mark. Checkpoint write failures are logged, not surfaced: the
// mutation is already durable in the ledger, recovery just replays more.
func (b *Bank) commit(entries []models.Transaction) {
	floor := b.ledger.Applied(entries)
	if err := b.writeCheckpoint(floor); err != nil {
		logrus.WithError(err).Warn("checkpoint advance failed")
	}
}

// Ledger exposes the transaction log for history queries.
func (b *Bank) Ledger() *Ledger { return b.ledger }

// Close flushes and closes every store.
func (b *Bank) Close() error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	keep(b.accounts.Close())
	keep(b.ledger.Close())
	keep(b.users.Close())
	keep(b.userSeq.Close())
	keep(b.loans.Close())
	keep(b.loanSeq.Close())
	keep(b.feedback.Close())
	return first
}
