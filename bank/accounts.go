package bank

import (
	"fmt"
	"io"

	"bankd/models"
)

// The reporting sink is a one-way text channel back to whoever initiated the
// operation. The engine only ever writes to it.
func say(sink io.Writer, format string, args ...interface{}) {
	if sink == nil {
		return
	}
	fmt.Fprintf(sink, format, args...)
}

func (b *Bank) locateAccount(number int32) (int64, bool) {
	b.acctMu.RLock()
	defer b.acctMu.RUnlock()
	idx, ok := b.acctIdx[number]
	return idx, ok
}

// CreateAccount appends a new, active, zero-balance account record. The
// append fsyncs, so an account visible in the index is durable before any
// ledger entry can reference it.
func (b *Bank) CreateAccount(number int32) error {
	b.acctMu.Lock()
	defer b.acctMu.Unlock()
	if _, ok := b.acctIdx[number]; ok {
		return ErrAccountExists
	}
	idx, err := b.accounts.Append(models.Account{Number: number, Balance: 0, Active: 1})
	if err != nil {
		return err
	}
	b.acctIdx[number] = idx
	return nil
}

// Account returns a snapshot of the account record.
func (b *Bank) Account(number int32) (models.Account, error) {
	idx, ok := b.locateAccount(number)
	if !ok {
		return models.Account{}, ErrAccountNotFound
	}
	held := b.latches.Acquire(number)
	defer b.latches.Release(held)
	var acct models.Account
	if err := b.accounts.ReadAt(idx, &acct); err != nil {
		return models.Account{}, err
	}
	return acct, nil
}

// SetAccountActive flips the account's active flag. Status changes are not
// balance-affecting and produce no ledger entry.
func (b *Bank) SetAccountActive(number int32, active bool) error {
	idx, ok := b.locateAccount(number)
	if !ok {
		return ErrAccountNotFound
	}
	held := b.latches.Acquire(number)
	defer b.latches.Release(held)
	var acct models.Account
	if err := b.accounts.ReadAt(idx, &acct); err != nil {
		return err
	}
	acct.Active = 0
	if active {
		acct.Active = 1
	}
	return b.accounts.WriteAt(idx, acct)
}

// Deposit credits the account and logs one entry.
func (b *Bank) Deposit(sink io.Writer, number int32, amount float32) error {
	newBal, err := b.credit(number, amount, models.TxDeposit)
	if err != nil {
		return b.reportAccountErr(sink, err)
	}
	say(sink, "Successfully deposited %.2f. New balance: %.2f\n", amount, newBal)
	return nil
}

// Withdraw debits the account and logs one entry. The balance never goes
// negative: the check and the mutation happen under the account's latch.
func (b *Bank) Withdraw(sink io.Writer, number int32, amount float32) error {
	if amount <= 0 {
		say(sink, "Invalid amount.\n")
		return ErrInvalidAmount
	}
	idx, ok := b.locateAccount(number)
	if !ok {
		say(sink, "Error: Account not found.\n")
		return ErrAccountNotFound
	}

	held := b.latches.Acquire(number)
	defer b.latches.Release(held)

	var acct models.Account
	if err := b.accounts.ReadAt(idx, &acct); err != nil {
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	if acct.Active == 0 {
		say(sink, "Error: Account is deactivated.\n")
		return ErrAccountInactive
	}
	if acct.Balance < amount {
		say(sink, "Error: Insufficient balance.\n")
		return ErrInsufficientFunds
	}

	old := acct.Balance
	acct.Balance -= amount
	entries, err := b.ledger.Append(models.Transaction{
		AccountID: number, Type: models.TxWithdrawal,
		Amount: amount, OldBalance: old, NewBalance: acct.Balance,
	})
	if err != nil {
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	if err := b.accounts.WriteAt(idx, acct); err != nil {
		// The ledger entry is durable; recovery re-applies it on next open.
		b.commit(entries)
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	b.commit(entries)
	say(sink, "Successfully withdrew %.2f. New balance: %.2f\n", amount, acct.Balance)
	return nil
}

// credit is the shared credit path for deposits and loan disbursements:
// write-ahead ledger entry first, then the account record, under the
// account's latch throughout.
func (b *Bank) credit(number int32, amount float32, typ models.TransactionType) (float32, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	idx, ok := b.locateAccount(number)
	if !ok {
		return 0, ErrAccountNotFound
	}

	held := b.latches.Acquire(number)
	defer b.latches.Release(held)

	var acct models.Account
	if err := b.accounts.ReadAt(idx, &acct); err != nil {
		return 0, err
	}
	if acct.Active == 0 {
		return 0, ErrAccountInactive
	}

	old := acct.Balance
	acct.Balance += amount
	entries, err := b.ledger.Append(models.Transaction{
		AccountID: number, Type: typ,
		Amount: amount, OldBalance: old, NewBalance: acct.Balance,
	})
	if err != nil {
		return 0, err
	}
	if err := b.accounts.WriteAt(idx, acct); err != nil {
		b.commit(entries)
		return 0, err
	}
	b.commit(entries)
	return acct.Balance, nil
}

func (b *Bank) reportAccountErr(sink io.Writer, err error) error {
	switch err {
	case ErrInvalidAmount:
		say(sink, "Invalid amount.\n")
	case ErrAccountNotFound:
		say(sink, "Error: Account not found.\n")
	case ErrAccountInactive:
		say(sink, "Error: Account is deactivated.\n")
	case ErrInsufficientFunds:
		say(sink, "Error: Insufficient balance.\n")
	default:
		say(sink, "Error: Cannot access account data.\n")
	}
	return err
}
