package bank

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankd/models"
)

func TestHistoryFiltersAndPreservesOrder(t *testing.T) {
	b := newTestBank(t)
	seedAccount(t, b, 100, 0)
	seedAccount(t, b, 200, 0)

	require.NoError(t, b.Deposit(nil, 100, 10))
	require.NoError(t, b.Deposit(nil, 200, 20))
	require.NoError(t, b.Deposit(nil, 100, 30))

	hist, err := b.Ledger().History(100)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, float32(10), hist[0].Amount)
	assert.Equal(t, float32(30), hist[1].Amount)
	for _, e := range hist {
		assert.Equal(t, int32(100), e.AccountID)
	}
}

func TestHistoryIdempotent(t *testing.T) {
	b := newTestBank(t)
	seedAccount(t, b, 100, 0)
	require.NoError(t, b.Deposit(nil, 100, 10))
	require.NoError(t, b.Deposit(nil, 100, 20))

	first, err := b.Ledger().History(100)
	require.NoError(t, err)
	second, err := b.Ledger().History(100)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWriteHistoryTable(t *testing.T) {
	b := newTestBank(t)
	seedAccount(t, b, 100, 0)
	require.NoError(t, b.Deposit(nil, 100, 42))

	var sink bytes.Buffer
	require.NoError(t, b.Ledger().WriteHistory(&sink, 100))
	out := sink.String()

	assert.Contains(t, out, "--- Transaction History for Account 100 ---")
	assert.Contains(t, out, historyHeader)
	assert.Contains(t, out, "DEPOSIT")
	assert.Contains(t, out, "42.00")
	// Timestamp rendered as YYYY-MM-DD HH:MM:SS.
	assert.Regexp(t, `\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`, out)
	assert.NotContains(t, out, historyEmpty)
}

func TestWriteHistoryNoMatches(t *testing.T) {
	b := newTestBank(t)
	seedAccount(t, b, 100, 0)
	require.NoError(t, b.Deposit(nil, 100, 10))

	var sink bytes.Buffer
	require.NoError(t, b.Ledger().WriteHistory(&sink, 999))
	out := sink.String()

	assert.Contains(t, out, "--- Transaction History for Account 999 ---")
	assert.Contains(t, out, historyEmpty)
	// Header plus rule plus the literal line, nothing else.
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestAppendAssignsTimestampsAndIDs(t *testing.T) {
	b := newTestBank(t)
	entries, err := b.Ledger().Append(
		models.Transaction{AccountID: 1, Type: models.TxDeposit, Amount: 5, NewBalance: 5},
		models.Transaction{AccountID: 1, Type: models.TxDeposit, Amount: 6, NewBalance: 11},
	)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].ID+1, entries[1].ID)
	assert.NotZero(t, entries[0].Timestamp)
	b.Ledger().Applied(entries)
}

func TestLedgerFloorTracksPending(t *testing.T) {
	b := newTestBank(t)
	first, err := b.Ledger().Append(models.Transaction{AccountID: 1, Type: models.TxDeposit, Amount: 1, NewBalance: 1})
	require.NoError(t, err)
	second, err := b.Ledger().Append(models.Transaction{AccountID: 2, Type: models.TxDeposit, Amount: 1, NewBalance: 1})
	require.NoError(t, err)

	// Completing the later append must not advance the floor past the
	// still-pending earlier one.
	floor := b.Ledger().Applied(second)
	assert.Equal(t, first[0].ID-1, floor)

	floor = b.Ledger().Applied(first)
	assert.Equal(t, second[0].ID, floor)
}
