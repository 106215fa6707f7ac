package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// PaymentRepository handles payment persistence and the payment-claim links
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a payment and its claim links
func (r *PaymentRepository) Create(tx *sql.Tx, payment *models.Payment) error {
	q := pick(r.db, tx)

	result, err := q.Exec(
		"INSERT INTO payments (payee, amount, payment_date) VALUES (?, ?, ?)",
		payment.Payee, payment.Amount, payment.PaymentDate,
	)
	if err != nil {
		r.logger.Error("Failed to create payment", zap.String("payee", payment.Payee), zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	payment.ID = id

	for _, claimID := range payment.ClaimIDs {
		// The UNIQUE constraint on claim_id rejects a claim already linked
		// to another payment.
		if _, err := q.Exec(
			"INSERT INTO payment_claims (payment_id, claim_id) VALUES (?, ?)",
			id, claimID,
		); err != nil {
			return fmt.Errorf("failed to link claim %d to payment: %w", claimID, err)
		}
	}
	return nil
}

// GetByID retrieves a payment with its linked claim ids
func (r *PaymentRepository) GetByID(id int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.QueryRow(
		"SELECT id, payee, amount, payment_date, created_at FROM payments WHERE id = ?", id,
	).Scan(&payment.ID, &payment.Payee, &payment.Amount, &payment.PaymentDate, &payment.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get payment", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	if payment.ClaimIDs, err = r.claimIDs(nil, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) claimIDs(tx *sql.Tx, paymentID int64) ([]int64, error) {
	q := pick(r.db, tx)

	rows, err := q.Query("SELECT claim_id FROM payment_claims WHERE payment_id = ? ORDER BY claim_id ASC", paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment claim links: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan claim link: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimIDs retrieves the linked claim ids inside the caller's transaction
func (r *PaymentRepository) ClaimIDs(tx *sql.Tx, paymentID int64) ([]int64, error) {
	return r.claimIDs(tx, paymentID)
}

// List retrieves all payments with their claim links, newest first
func (r *PaymentRepository) List() ([]*models.Payment, error) {
	rows, err := r.db.Query("SELECT id, payee, amount, payment_date, created_at FROM payments ORDER BY created_at DESC, id DESC")
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Error(err))
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		var payment models.Payment
		if err := rows.Scan(&payment.ID, &payment.Payee, &payment.Amount, &payment.PaymentDate, &payment.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, payment := range payments {
		if payment.ClaimIDs, err = r.claimIDs(nil, payment.ID); err != nil {
			return nil, err
		}
	}
	return payments, nil
}

// Delete removes a payment; links go with it via cascade. Returns
// ErrNotFound when the payment does not exist (or was already cancelled).
func (r *PaymentRepository) Delete(tx *sql.Tx, id int64) error {
	q := pick(r.db, tx)

	result, err := q.Exec("DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
