package bank

import (
	"io"

	"bankd/models"
)

// ApplyLoan files a loan application for an active customer. The loan starts
// Pending and unassigned.
func (b *Bank) ApplyLoan(customerID int32, amount float32) (models.Loan, error) {
	if amount <= 0 {
		return models.Loan{}, ErrInvalidAmount
	}
	user, err := b.User(customerID)
	if err != nil {
		return models.Loan{}, err
	}
	if user.Role != models.RoleCustomer || user.Active == 0 {
		return models.Loan{}, ErrUserNotFound
	}

	b.loanMu.Lock()
	defer b.loanMu.Unlock()
	id, err := b.loanSeq.Next()
	if err != nil {
		return models.Loan{}, err
	}
	loan := models.Loan{
		ID:         int32(id),
		CustomerID: customerID,
		Amount:     amount,
		Status:     models.LoanPending,
		EmployeeID: -1,
	}
	idx, err := b.loans.Append(loan)
	if err != nil {
		return models.Loan{}, err
	}
	b.loanIdx[loan.ID] = idx
	return loan, nil
}

// Loan returns the loan record for id.
func (b *Bank) Loan(id int32) (models.Loan, error) {
	b.loanMu.Lock()
	defer b.loanMu.Unlock()
	return b.readLoan(id)
}

func (b *Bank) readLoan(id int32) (models.Loan, error) {
	idx, ok := b.loanIdx[id]
	if !ok {
		return models.Loan{}, ErrLoanNotFound
	}
	var loan models.Loan
	if err := b.loans.ReadAt(idx, &loan); err != nil {
		return models.Loan{}, err
	}
	return loan, nil
}

// PendingLoans returns every loan still awaiting assignment, in file order.
func (b *Bank) PendingLoans() ([]models.Loan, error) {
	b.loanMu.Lock()
	defer b.loanMu.Unlock()
	var out []models.Loan
	var loan models.Loan
	err := b.loans.Scan(&loan, func(int64) error {
		if loan.Status == models.LoanPending {
			out = append(out, loan)
		}
		return nil
	})
	return out, err
}

// AssignLoan hands a pending loan to an employee and moves it to Processing.
func (b *Bank) AssignLoan(loanID, employeeID int32) error {
	emp, err := b.User(employeeID)
	if err != nil {
		return err
	}
	if emp.Role != models.RoleEmployee {
		return ErrNotAnEmployee
	}

	b.loanMu.Lock()
	defer b.loanMu.Unlock()
	loan, err := b.readLoan(loanID)
	if err != nil {
		return err
	}
	if loan.Status != models.LoanPending {
		return ErrLoanNotOpen
	}
	loan.EmployeeID = employeeID
	loan.Status = models.LoanProcessing
	return b.loans.WriteAt(b.loanIdx[loanID], loan)
}

// DecideLoan resolves a Processing loan. Approval disburses the amount to
// the customer's account through the normal credit path, producing a
// LOAN_DEPOSIT ledger entry; the loan only moves to Approved once the
// disbursement committed. Rejection just flips the status.
func (b *Bank) DecideLoan(sink io.Writer, loanID int32, approve bool) error {
	b.loanMu.Lock()
	defer b.loanMu.Unlock()
	loan, err := b.readLoan(loanID)
	if err != nil {
		say(sink, "Error: Loan not found.\n")
		return err
	}
	if loan.Status != models.LoanProcessing {
		say(sink, "Error: Loan is not under processing.\n")
		return ErrLoanNotOpen
	}

	if !approve {
		loan.Status = models.LoanRejected
		if err := b.loans.WriteAt(b.loanIdx[loanID], loan); err != nil {
			return err
		}
		say(sink, "Loan %d rejected.\n", loanID)
		return nil
	}

	newBal, err := b.credit(loan.CustomerID, loan.Amount, models.TxLoanDeposit)
	if err != nil {
		return b.reportAccountErr(sink, err)
	}
	loan.Status = models.LoanApproved
	if err := b.loans.WriteAt(b.loanIdx[loanID], loan); err != nil {
		return err
	}
	say(sink, "Loan %d approved. Disbursed %.2f to account %d (balance %.2f).\n",
		loanID, loan.Amount, loan.CustomerID, newBal)
	return nil
}
