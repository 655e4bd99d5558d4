package bank

import "bankd/models"

// GiveFeedback appends one feedback record for an existing account.
func (b *Bank) GiveFeedback(accountID int32, message string) error {
	if _, ok := b.locateAccount(accountID); !ok {
		return ErrAccountNotFound
	}
	rec := models.Feedback{AccountID: accountID}
	models.PutCString(rec.Message[:], message)

	b.fbMu.Lock()
	defer b.fbMu.Unlock()
	_, err := b.feedback.Append(rec)
	return err
}

// Feedbacks returns every feedback record in submission order.
func (b *Bank) Feedbacks() ([]models.Feedback, error) {
	b.fbMu.Lock()
	defer b.fbMu.Unlock()
	var out []models.Feedback
	var rec models.Feedback
	err := b.feedback.Scan(&rec, func(int64) error {
		out = append(out, rec)
		return nil
	})
	return out, err
}
