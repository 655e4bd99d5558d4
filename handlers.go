package main

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bankd/bank"
	"bankd/models"
)

func statusFor(err error) int {
	switch err {
	case bank.ErrInvalidAmount, bank.ErrSameAccount, bank.ErrInsufficientFunds,
		bank.ErrAccountInactive, bank.ErrLoanNotOpen, bank.ErrNotAnEmployee:
		return http.StatusBadRequest
	case bank.ErrAccountNotFound, bank.ErrUserNotFound, bank.ErrLoanNotFound:
		return http.StatusNotFound
	case bank.ErrBadCredentials, bank.ErrUserInactive, bank.ErrSessionUnknown:
		return http.StatusUnauthorized
	case bank.ErrAlreadyLoggedIn, bank.ErrAccountExists:
		return http.StatusConflict
	case bank.ErrSessionsFull:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func parseRole(s string) (models.Role, bool) {
	switch strings.ToLower(s) {
	case "customer":
		return models.RoleCustomer, true
	case "admin":
		return models.RoleAdmin, true
	case "employee":
		return models.RoleEmployee, true
	case "manager":
		return models.RoleManager, true
	}
	return 0, false
}

func paramInt32(c *gin.Context, name string) (int32, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return int32(v), true
}

// authRequired resolves the session token from the Authorization header and,
// when roles are given, requires the caller to hold one of them.
func authRequired(b *bank.Bank, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		userID, ok := b.Sessions.Lookup(token)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}
		user, err := b.User(userID)
		if err != nil {
			c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		if len(roles) > 0 {
			allowed := false
			for _, r := range roles {
				if user.Role == r {
					allowed = true
					break
				}
			}
			if !allowed {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
				return
			}
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func login(c *gin.Context, b *bank.Bank) {
	var req struct {
		UserID   int32  `json:"user_id"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, user, err := b.Login(req.UserID, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"role":  user.Role.String(),
		"name":  models.CString(user.Name[:]),
	})
}

func logout(c *gin.Context, b *bank.Bank) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if err := b.Logout(token); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func createUser(c *gin.Context, b *bank.Bank) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	user, err := b.AddUser(req.Name, req.Password, role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":   user.ID,
		"name": models.CString(user.Name[:]),
		"role": user.Role.String(),
	})
}

func getUsers(c *gin.Context, b *bank.Bank) {
	users, err := b.Users()
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":     u.ID,
			"name":   models.CString(u.Name[:]),
			"role":   u.Role.String(),
			"active": u.Active == 1,
		})
	}
	c.JSON(http.StatusOK, out)
}

func modifyUser(c *gin.Context, b *bank.Bank) {
	id, ok := paramInt32(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.ModifyUser(id, req.Name, req.Password); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user updated"})
}

func setUserStatus(c *gin.Context, b *bank.Bank) {
	id, ok := paramInt32(c, "id")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.SetUserActive(id, *req.Active); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user status updated"})
}

func getAccount(c *gin.Context, b *bank.Bank) {
	no, ok := paramInt32(c, "no")
	if !ok {
		return
	}
	acct, err := b.Account(no)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_no": acct.Number,
		"balance":    acct.Balance,
		"active":     acct.Active == 1,
	})
}

func setAccountStatus(c *gin.Context, b *bank.Bank) {
	no, ok := paramInt32(c, "no")
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.SetAccountActive(no, *req.Active); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account status updated"})
}

func transfer(c *gin.Context, b *bank.Bank) {
	var req struct {
		FromAccount int32   `json:"from_account"`
		ToAccount   int32   `json:"to_account"`
		Amount      float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var sink bytes.Buffer
	err := b.Transfer(&sink, req.FromAccount, req.ToAccount, float32(req.Amount))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": sink.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": sink.String()})
}

// queueTransaction validates the submission and hands it to the queue; the
// consumer applies it asynchronously.
func queueTransaction(c *gin.Context, b *bank.Bank, rabbitMQ *RabbitMQ) {
	var qt QueuedTransaction
	if err := c.ShouldBindJSON(&qt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if qt.Amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be greater than 0"})
		return
	}
	switch qt.Type {
	case "deposit", "withdrawal":
		if _, err := b.Account(qt.AccountID); err != nil {
			fail(c, err)
			return
		}
	case "transfer":
		if _, err := b.Account(qt.FromAccount); err != nil {
			fail(c, err)
			return
		}
		if _, err := b.Account(qt.ToAccount); err != nil {
			fail(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction type"})
		return
	}
	if rabbitMQ == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "transaction queue unavailable"})
		return
	}
	if err := rabbitMQ.PublishTransaction(qt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue transaction"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Transaction queued successfully",
		"type":    qt.Type,
		"amount":  qt.Amount,
	})
}

// getTransactionHistory renders the account's ledger entries as the fixed
// text table.
func getTransactionHistory(c *gin.Context, b *bank.Bank) {
	no, ok := paramInt32(c, "account_no")
	if !ok {
		return
	}
	var sink bytes.Buffer
	if err := b.Ledger().WriteHistory(&sink, no); err != nil {
		fail(c, err)
		return
	}
	c.String(http.StatusOK, "%s", sink.String())
}

func applyLoan(c *gin.Context, b *bank.Bank) {
	var req struct {
		CustomerID int32   `json:"customer_id"`
		Amount     float64 `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loan, err := b.ApplyLoan(req.CustomerID, float32(req.Amount))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"loan_id":     loan.ID,
		"customer_id": loan.CustomerID,
		"amount":      loan.Amount,
		"status":      loan.Status.String(),
	})
}

func getPendingLoans(c *gin.Context, b *bank.Bank) {
	loans, err := b.PendingLoans()
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(loans))
	for _, l := range loans {
		out = append(out, gin.H{
			"loan_id":     l.ID,
			"customer_id": l.CustomerID,
			"amount":      l.Amount,
			"status":      l.Status.String(),
		})
	}
	c.JSON(http.StatusOK, out)
}

func assignLoan(c *gin.Context, b *bank.Bank) {
	id, ok := paramInt32(c, "id")
	if !ok {
		return
	}
	var req struct {
		EmployeeID int32 `json:"employee_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.AssignLoan(id, req.EmployeeID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "loan assigned"})
}

func decideLoan(c *gin.Context, b *bank.Bank) {
	id, ok := paramInt32(c, "id")
	if !ok {
		return
	}
	var req struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var sink bytes.Buffer
	if err := b.DecideLoan(&sink, id, *req.Approve); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "result": sink.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": sink.String()})
}

func postFeedback(c *gin.Context, b *bank.Bank) {
	var req struct {
		AccountID int32  `json:"account_id"`
		Message   string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := b.GiveFeedback(req.AccountID, req.Message); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "feedback recorded"})
}

func getFeedbacks(c *gin.Context, b *bank.Bank) {
	fbs, err := b.Feedbacks()
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]gin.H, 0, len(fbs))
	for _, f := range fbs {
		out = append(out, gin.H{
			"account_id": f.AccountID,
			"message":    models.CString(f.Message[:]),
		})
	}
	c.JSON(http.StatusOK, out)
}
