package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// VendorRepository handles vendor and vendor request persistence
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) *VendorRepository {
	return &VendorRepository{
		db:     db,
		logger: logger,
	}
}

const vendorColumns = "id, name, service_content, bank_code, bank_account, is_floating_account, status, created_at, updated_at"

func scanVendor(row interface{ Scan(...interface{}) error }) (*models.Vendor, error) {
	var vendor models.Vendor
	err := row.Scan(
		&vendor.ID,
		&vendor.Name,
		&vendor.ServiceContent,
		&vendor.BankCode,
		&vendor.BankAccount,
		&vendor.IsFloatingAccount,
		&vendor.Status,
		&vendor.CreatedAt,
		&vendor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// CreateVendor inserts a vendor row (only called when an add request is approved)
func (r *VendorRepository) CreateVendor(tx *sql.Tx, vendor *models.Vendor) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		INSERT INTO vendors (name, service_content, bank_code, bank_account, is_floating_account, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, vendor.Name, vendor.ServiceContent, vendor.BankCode, vendor.BankAccount, vendor.IsFloatingAccount, vendor.Status)
	if err != nil {
		r.logger.Error("Failed to create vendor", zap.String("name", vendor.Name), zap.Error(err))
		return fmt.Errorf("failed to create vendor: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	vendor.ID = id
	return nil
}

// GetVendor retrieves a vendor by ID
func (r *VendorRepository) GetVendor(id int64) (*models.Vendor, error) {
	row := r.db.QueryRow("SELECT "+vendorColumns+" FROM vendors WHERE id = ?", id)
	vendor, err := scanVendor(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get vendor", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return vendor, nil
}

// ListVendors retrieves all vendors ordered by name
func (r *VendorRepository) ListVendors() ([]*models.Vendor, error) {
	rows, err := r.db.Query("SELECT " + vendorColumns + " FROM vendors ORDER BY name ASC")
	if err != nil {
		r.logger.Error("Failed to list vendors", zap.Error(err))
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []*models.Vendor
	for rows.Next() {
		vendor, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, vendor)
	}
	return vendors, rows.Err()
}

// UpdateVendorData overwrites a vendor's master data
func (r *VendorRepository) UpdateVendorData(tx *sql.Tx, id int64, data *models.VendorData) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		UPDATE vendors SET
			name = ?, service_content = ?, bank_code = ?, bank_account = ?,
			is_floating_account = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, data.Name, data.ServiceContent, data.BankCode, data.BankAccount, data.IsFloatingAccount, id)
	if err != nil {
		return fmt.Errorf("failed to update vendor: %w", err)
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

// SetVendorStatus flips a vendor between active and inactive
func (r *VendorRepository) SetVendorStatus(tx *sql.Tx, id int64, status string) error {
	q := pick(r.db, tx)

	result, err := q.Exec(
		"UPDATE vendors SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set vendor status: %w", err)
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

func encodeVendorData(data *models.VendorData) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode vendor data: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, nil
}

func decodeVendorData(raw sql.NullString) (*models.VendorData, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var data models.VendorData
	if err := json.Unmarshal([]byte(raw.String), &data); err != nil {
		return nil, fmt.Errorf("failed to decode vendor data: %w", err)
	}
	return &data, nil
}

const requestColumns = "id, type, status, vendor_id, payload, original_data, applicant_id, applicant_name, resolver_id, resolved_at, created_at"

func scanRequest(row interface{ Scan(...interface{}) error }) (*models.VendorRequest, error) {
	var req models.VendorRequest
	var vendorID, resolverID sql.NullInt64
	var payload, original sql.NullString
	var resolvedAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.Type,
		&req.Status,
		&vendorID,
		&payload,
		&original,
		&req.ApplicantID,
		&req.ApplicantName,
		&resolverID,
		&resolvedAt,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vendorID.Valid {
		req.VendorID = &vendorID.Int64
	}
	if resolverID.Valid {
		req.ResolverID = &resolverID.Int64
	}
	if resolvedAt.Valid {
		req.ResolvedAt = &resolvedAt.Time
	}
	if req.Data, err = decodeVendorData(payload); err != nil {
		return nil, err
	}
	if req.OriginalData, err = decodeVendorData(original); err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest inserts a vendor moderation request
func (r *VendorRepository) CreateRequest(tx *sql.Tx, req *models.VendorRequest) error {
	q := pick(r.db, tx)

	payload, err := encodeVendorData(req.Data)
	if err != nil {
		return err
	}
	original, err := encodeVendorData(req.OriginalData)
	if err != nil {
		return err
	}

	result, err := q.Exec(`
		INSERT INTO vendor_requests (type, status, vendor_id, payload, original_data, applicant_id, applicant_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.Type, req.Status, req.VendorID, payload, original, req.ApplicantID, req.ApplicantName)
	if err != nil {
		r.logger.Error("Failed to create vendor request", zap.String("type", req.Type), zap.Error(err))
		return fmt.Errorf("failed to create vendor request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// GetRequest retrieves a vendor request by ID
func (r *VendorRepository) GetRequest(id int64) (*models.VendorRequest, error) {
	row := r.db.QueryRow("SELECT "+requestColumns+" FROM vendor_requests WHERE id = ?", id)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get vendor request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor request: %w", err)
	}
	return req, nil
}

// ListRequests retrieves vendor requests, optionally filtered by status,
// newest first
func (r *VendorRepository) ListRequests(status string) ([]*models.VendorRequest, error) {
	query := "SELECT " + requestColumns + " FROM vendor_requests"
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list vendor requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list vendor requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.VendorRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// PendingRequestForVendor returns the in-flight request for a vendor, or
// ErrNotFound when there is none
func (r *VendorRepository) PendingRequestForVendor(vendorID int64) (*models.VendorRequest, error) {
	row := r.db.QueryRow(
		"SELECT "+requestColumns+" FROM vendor_requests WHERE vendor_id = ? AND status = ?",
		vendorID, models.RequestPending,
	)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending vendor request: %w", err)
	}
	return req, nil
}

// HasPendingAdd reports whether a pending add request already proposes a
// vendor with the given name
func (r *VendorRepository) HasPendingAdd(name string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM vendor_requests
		WHERE type = ? AND status = ? AND json_extract(payload, '$.name') = ?
	`, models.VendorRequestAdd, models.RequestPending, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check pending adds: %w", err)
	}
	return count > 0, nil
}

// ResolveRequest marks a pending request approved or rejected. The pending
// status is part of the WHERE clause, so resolving an already-resolved
// request returns ErrConflict.
func (r *VendorRepository) ResolveRequest(tx *sql.Tx, id int64, status string, resolverID int64) error {
	q := pick(r.db, tx)

	result, err := q.Exec(`
		UPDATE vendor_requests
		SET status = ?, resolver_id = ?, resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, status, resolverID, id, models.RequestPending)
	if err != nil {
		return fmt.Errorf("failed to resolve vendor request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: vendor request %d is not pending", ErrConflict, id)
	}
	return nil
}
