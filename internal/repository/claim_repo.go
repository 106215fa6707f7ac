package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// ClaimRepository handles claim, claim item, and claim history persistence
type ClaimRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewClaimRepository creates a new claim repository
func NewClaimRepository(db *sql.DB, logger *zap.Logger) *ClaimRepository {
	return &ClaimRepository{
		db:     db,
		logger: logger,
	}
}

const claimColumns = `id, type, payee, payee_id, description, amount, claim_date,
	status, applicant_id, no_receipt_reason, bank_code, bank_account, created_at, updated_at`

func scanClaim(row interface{ Scan(...interface{}) error }) (*models.Claim, error) {
	var claim models.Claim
	var payeeID sql.NullInt64

	err := row.Scan(
		&claim.ID,
		&claim.Type,
		&claim.Payee,
		&payeeID,
		&claim.Description,
		&claim.Amount,
		&claim.ClaimDate,
		&claim.Status,
		&claim.ApplicantID,
		&claim.NoReceiptReason,
		&claim.BankCode,
		&claim.BankAccount,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if payeeID.Valid {
		claim.PayeeID = &payeeID.Int64
	}
	return &claim, nil
}

// Create inserts a claim and its items
func (r *ClaimRepository) Create(tx *sql.Tx, claim *models.Claim) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		INSERT INTO claims (
			type, payee, payee_id, description, amount, claim_date, status,
			applicant_id, no_receipt_reason, bank_code, bank_account
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		claim.Type, claim.Payee, claim.PayeeID, claim.Description, claim.Amount,
		claim.ClaimDate, claim.Status, claim.ApplicantID, claim.NoReceiptReason,
		claim.BankCode, claim.BankAccount,
	)
	if err != nil {
		r.logger.Error("Failed to create claim", zap.Error(err))
		return fmt.Errorf("failed to create claim: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	claim.ID = id

	for _, item := range claim.Items {
		item.ClaimID = id
		if err := r.createItem(q, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *ClaimRepository) createItem(q querier, item *models.ClaimItem) error {
	result, err := q.Exec(`
		INSERT INTO claim_items (
			claim_id, item_date, amount, description, category,
			invoice_number, receipt_url, no_receipt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ClaimID, item.ItemDate, item.Amount, item.Description,
		item.Category, item.InvoiceNumber, item.ReceiptURL, item.NoReceipt,
	)
	if err != nil {
		return fmt.Errorf("failed to create claim item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	return nil
}

// GetByID retrieves a claim with its items and history
func (r *ClaimRepository) GetByID(id int64) (*models.Claim, error) {
	row := r.db.QueryRow("SELECT "+claimColumns+" FROM claims WHERE id = ?", id)
	claim, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get claim", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}

	if claim.Items, err = r.itemsByClaim(id); err != nil {
		return nil, err
	}
	if claim.History, err = r.HistoryByClaim(id); err != nil {
		return nil, err
	}
	return claim, nil
}

func (r *ClaimRepository) itemsByClaim(claimID int64) ([]*models.ClaimItem, error) {
	rows, err := r.db.Query(`
		SELECT id, claim_id, item_date, amount, description, category,
			invoice_number, receipt_url, no_receipt, created_at
		FROM claim_items WHERE claim_id = ? ORDER BY id ASC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim items: %w", err)
	}
	defer rows.Close()

	var items []*models.ClaimItem
	for rows.Next() {
		var item models.ClaimItem
		err := rows.Scan(
			&item.ID, &item.ClaimID, &item.ItemDate, &item.Amount,
			&item.Description, &item.Category, &item.InvoiceNumber,
			&item.ReceiptURL, &item.NoReceipt, &item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim item: %w", err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// ClaimFilter narrows List results; zero-valued fields are ignored
type ClaimFilter struct {
	ApplicantID *int64
	Status      string
	Payee       string
	Type        string
}

// List retrieves claims matching the filter, newest first, without child
// collections
func (r *ClaimRepository) List(filter ClaimFilter) ([]*models.Claim, error) {
	query := "SELECT " + claimColumns + " FROM claims"
	var conds []string
	var args []interface{}

	if filter.ApplicantID != nil {
		conds = append(conds, "applicant_id = ?")
		args = append(args, *filter.ApplicantID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Payee != "" {
		conds = append(conds, "payee = ?")
		args = append(args, filter.Payee)
	}
	if filter.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, filter.Type)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list claims", zap.Error(err))
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// GetByIDs retrieves the named claims inside the caller's transaction,
// without child collections
func (r *ClaimRepository) GetByIDs(tx *sql.Tx, ids []int64) ([]*models.Claim, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	q := pick(r.db, tx)
	rows, err := q.Query("SELECT "+claimColumns+" FROM claims WHERE id IN ("+placeholders+") ORDER BY id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get claims: %w", err)
	}
	defer rows.Close()

	var claims []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}

// UpdateStatus moves a claim from one status to another. The previous status
// is part of the WHERE clause: if a concurrent transition got there first,
// zero rows match and ErrConflict is returned.
func (r *ClaimRepository) UpdateStatus(tx *sql.Tx, id int64, from, to string) error {
	q := pick(r.db, tx)

	result, err := q.Exec(
		"UPDATE claims SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		to, id, from,
	)
	if err != nil {
		r.logger.Error("Failed to update claim status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update claim status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: claim %d is no longer %s", ErrConflict, id, from)
	}
	return nil
}

// UpdateBody rewrites a claim's editable fields and replaces its items.
// The row is only touched while the claim still sits in an editable status;
// zero rows affected means the claim moved on concurrently and the caller
// must re-read before retrying.
func (r *ClaimRepository) UpdateBody(tx *sql.Tx, claim *models.Claim) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		UPDATE claims SET
			type = ?, payee = ?, payee_id = ?, description = ?, amount = ?,
			claim_date = ?, no_receipt_reason = ?, bank_code = ?, bank_account = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status IN (?, ?, ?)
	`,
		claim.Type, claim.Payee, claim.PayeeID, claim.Description, claim.Amount,
		claim.ClaimDate, claim.NoReceiptReason, claim.BankCode, claim.BankAccount,
		claim.ID, models.StatusDraft, models.StatusRejected, models.StatusPendingEvidence,
	)
	if err != nil {
		return fmt.Errorf("failed to update claim: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: claim %d is no longer editable", ErrConflict, claim.ID)
	}

	if _, err := q.Exec("DELETE FROM claim_items WHERE claim_id = ?", claim.ID); err != nil {
		return fmt.Errorf("failed to clear claim items: %w", err)
	}
	for _, item := range claim.Items {
		item.ClaimID = claim.ID
		if err := r.createItem(q, item); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a claim and, via cascade, its items and history
func (r *ClaimRepository) Delete(tx *sql.Tx, id int64) error {
	q := pick(r.db, tx)

	result, err := q.Exec("DELETE FROM claims WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete claim: %w", err)
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

// AppendHistory writes one audit entry; callers pass the same transaction
// that carries the status change the entry records
func (r *ClaimRepository) AppendHistory(tx *sql.Tx, entry *models.ClaimHistory) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		INSERT INTO claim_history (claim_id, actor_id, actor_name, action, comment)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ClaimID, entry.ActorID, entry.ActorName, entry.Action, entry.Comment)
	if err != nil {
		r.logger.Error("Failed to append claim history", zap.Int64("claim_id", entry.ClaimID), zap.Error(err))
		return fmt.Errorf("failed to append claim history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// HistoryByClaim retrieves a claim's audit trail in append order
func (r *ClaimRepository) HistoryByClaim(claimID int64) ([]*models.ClaimHistory, error) {
	rows, err := r.db.Query(`
		SELECT id, claim_id, actor_id, actor_name, action, comment, created_at
		FROM claim_history WHERE claim_id = ? ORDER BY created_at ASC, id ASC
	`, claimID)
	if err != nil {
		return nil, fmt.Errorf("failed to get claim history: %w", err)
	}
	defer rows.Close()

	var entries []*models.ClaimHistory
	for rows.Next() {
		var entry models.ClaimHistory
		err := rows.Scan(
			&entry.ID, &entry.ClaimID, &entry.ActorID, &entry.ActorName,
			&entry.Action, &entry.Comment, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan claim history: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
