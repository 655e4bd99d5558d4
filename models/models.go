// Package models defines the fixed-width binary record types shared by the
// record store, the ledger and the HTTP layer. Field widths match the on-disk
// format exactly: records are written with encoding/binary in little-endian
// order, so struct layout here IS the file format.
package models

// Role of a user record.
type Role int32

const (
	RoleCustomer Role = 1
	RoleAdmin    Role = 2
	RoleEmployee Role = 3
	RoleManager  Role = 4
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	case RoleEmployee:
		return "employee"
	case RoleManager:
		return "manager"
	}
	return "unknown"
}

// LoanStatus of a loan record.
type LoanStatus int32

const (
	LoanPending    LoanStatus = 1
	LoanProcessing LoanStatus = 2
	LoanApproved   LoanStatus = 3
	LoanRejected   LoanStatus = 4
)

func (s LoanStatus) String() string {
	switch s {
	case LoanPending:
		return "pending"
	case LoanProcessing:
		return "processing"
	case LoanApproved:
		return "approved"
	case LoanRejected:
		return "rejected"
	}
	return "unknown"
}

// TransactionType names the balance-affecting event a ledger entry records.
type TransactionType int32

const (
	TxDeposit          TransactionType = 1
	TxWithdrawal       TransactionType = 2
	TxLoanDeposit      TransactionType = 3
	TxTransferSent     TransactionType = 4
	TxTransferReceived TransactionType = 5
)

func (t TransactionType) String() string {
	switch t {
	case TxDeposit:
		return "DEPOSIT"
	case TxWithdrawal:
		return "WITHDRAWAL"
	case TxLoanDeposit:
		return "LOAN_DEPOSIT"
	case TxTransferSent:
		return "TRANSFER_SENT"
	case TxTransferReceived:
		return "TRANSFER_RECV"
	}
	return "UNKNOWN"
}

// User record, 82 bytes on disk.
type User struct {
	ID       int32
	Name     [50]byte
	Password [20]byte
	Role     Role
	Active   int32
}

// Account record, 12 bytes on disk. A customer's account number equals the
// owning user id. Balance must never be negative at rest.
type Account struct {
	Number  int32
	Balance float32
	Active  int32
}

// Loan record, 20 bytes on disk. EmployeeID is -1 while unassigned.
type Loan struct {
	ID         int32
	CustomerID int32
	Amount     float32
	Status     LoanStatus
	EmployeeID int32
}

// Transaction record, 36 bytes on disk. Append-only, never mutated.
type Transaction struct {
	ID         int64
	AccountID  int32
	Type       TransactionType
	Amount     float32
	OldBalance float32
	NewBalance float32
	Timestamp  int64
}

// Feedback record, 1038 bytes on disk.
type Feedback struct {
	AccountID int32
	Message   [1034]byte
}

// CString decodes a NUL-padded fixed-width byte field.
func CString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// PutCString copies s into the fixed-width field dst, truncating if needed
// and NUL-padding the remainder.
func PutCString(dst []byte, s string) {
	n := copy(dst, s)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}
