package bank

import (
	"io"

	"bankd/models"
)

// Transfer moves amount from one account to another.
//
// Validation runs in a fixed order and the first failing check wins:
// positive amount, then both accounts resolvable, then (re-read under both
// latches, since balances may have moved since the lookup) both accounts
// active and the source funded. Latches are taken through the table's
// ascending-key order, so two opposing transfers can never deadlock.
//
// Commit order is write-ahead: the TRANSFER_SENT and TRANSFER_RECV ledger
// entries go down in one fsynced append, then both account records are
// written, then the checkpoint advances. A crash after the append is healed
// by replay on the next open; a crash before it loses the whole transfer,
// never half of it. The sum of the two balances is invariant across the
// operation.
func (b *Bank) Transfer(sink io.Writer, from, to int32, amount float32) error {
	if amount <= 0 {
		say(sink, "Invalid transfer amount.\n")
		return ErrInvalidAmount
	}
	if from == to {
		say(sink, "Error: Cannot transfer to the same account.\n")
		return ErrSameAccount
	}

	fromIdx, okFrom := b.locateAccount(from)
	toIdx, okTo := b.locateAccount(to)
	if !okFrom || !okTo {
		say(sink, "Error: One or both accounts not found.\n")
		return ErrAccountNotFound
	}

	held := b.latches.Acquire(from, to)
	defer b.latches.Release(held)

	var src, dst models.Account
	if err := b.accounts.ReadAt(fromIdx, &src); err != nil {
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	if err := b.accounts.ReadAt(toIdx, &dst); err != nil {
		say(sink, "Error: Cannot access account data.\n")
		return err
	}

	if src.Active == 0 || dst.Active == 0 {
		say(sink, "Error: One or both accounts are deactivated.\n")
		return ErrAccountInactive
	}
	if src.Balance < amount {
		say(sink, "Error: Insufficient balance for transfer.\n")
		return ErrInsufficientFunds
	}

	srcOld, dstOld := src.Balance, dst.Balance
	src.Balance -= amount
	dst.Balance += amount

	entries, err := b.ledger.Append(
		models.Transaction{
			AccountID: from, Type: models.TxTransferSent,
			Amount: amount, OldBalance: srcOld, NewBalance: src.Balance,
		},
		models.Transaction{
			AccountID: to, Type: models.TxTransferReceived,
			Amount: amount, OldBalance: dstOld, NewBalance: dst.Balance,
		},
	)
	if err != nil {
		say(sink, "Error: Cannot access account data.\n")
		return err
	}

	if err := b.accounts.WriteAt(fromIdx, src); err != nil {
		b.commit(entries)
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	if err := b.accounts.WriteAt(toIdx, dst); err != nil {
		b.commit(entries)
		say(sink, "Error: Cannot access account data.\n")
		return err
	}
	b.commit(entries)

	say(sink, "Successfully transferred %.2f from account %d to account %d.\n", amount, from, to)
	return nil
}
