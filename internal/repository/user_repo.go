package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cando-yeh/reimbursement-sub001/internal/models"
)

// UserRepository handles user database operations
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = "id, name, email, role_name, permissions, approver_id, created_at, updated_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var user models.User
	var permissions string
	var approverID sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.RoleName,
		&permissions,
		&approverID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(permissions), &user.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	if approverID.Valid {
		user.ApproverID = &approverID.Int64
	}
	return &user, nil
}

// Create inserts a new user
func (r *UserRepository) Create(user *models.User) error {
	permissions, err := json.Marshal(user.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	result, err := r.db.Exec(`
		INSERT INTO users (name, email, role_name, permissions, approver_id)
		VALUES (?, ?, ?, ?, ?)
	`, user.Name, user.Email, user.RoleName, string(permissions), user.ApproverID)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("email", user.Email), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(id int64) (*models.User, error) {
	row := r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE id = ?", id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	row := r.db.QueryRow("SELECT "+userColumns+" FROM users WHERE email = ?", email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get user by email", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpsertByEmail resolves the user for an identity-provider sign-in, creating
// the record on first sign-in and refreshing the display name afterwards.
func (r *UserRepository) UpsertByEmail(email, name string) (*models.User, error) {
	existing, err := r.GetByEmail(email)
	if err == nil {
		if existing.Name != name {
			if _, err := r.db.Exec("UPDATE users SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", name, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to refresh user name: %w", err)
			}
			existing.Name = name
		}
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	user := &models.User{
		Name:        name,
		Email:       email,
		Permissions: []string{models.PermGeneral},
	}
	if err := r.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetApprover assigns the user's approver. The approver must exist and must
// be a different user.
func (r *UserRepository) SetApprover(userID, approverID int64) error {
	if userID == approverID {
		return fmt.Errorf("user %d cannot be their own approver", userID)
	}
	if _, err := r.GetByID(approverID); err != nil {
		return fmt.Errorf("approver %d: %w", approverID, err)
	}

	result, err := r.db.Exec("UPDATE users SET approver_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", approverID, userID)
	if err != nil {
		return fmt.Errorf("failed to set approver: %w", err)
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

// UpdatePermissions replaces a user's permission set. Removing
// user_management from its last holder is refused so the system always
// retains an administrator.
func (r *UserRepository) UpdatePermissions(userID int64, permissions []string) error {
	user, err := r.GetByID(userID)
	if err != nil {
		return err
	}

	keepsAdmin := false
	for _, p := range permissions {
		if p == models.PermUserManagement {
			keepsAdmin = true
			break
		}
	}
	if user.HasPermission(models.PermUserManagement) && !keepsAdmin {
		holders, err := r.countPermissionHolders(models.PermUserManagement)
		if err != nil {
			return err
		}
		if holders <= 1 {
			return fmt.Errorf("%w: user %d", ErrLastAdmin, userID)
		}
	}

	encoded, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}
	_, err = r.db.Exec("UPDATE users SET permissions = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", string(encoded), userID)
	if err != nil {
		return fmt.Errorf("failed to update permissions: %w", err)
	}
	return nil
}

func (r *UserRepository) countPermissionHolders(perm string) (int, error) {
	// Permissions are stored as a JSON array; match the quoted element.
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM users WHERE permissions LIKE ?",
		"%\""+perm+"\"%",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count permission holders: %w", err)
	}
	return count, nil
}

// Delete removes a user unless they are still referenced as another user's
// approver or as a claim's applicant, or hold the last user_management
// permission.
func (r *UserRepository) Delete(userID int64) error {
	user, err := r.GetByID(userID)
	if err != nil {
		return err
	}

	var references int
	err = r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM users WHERE approver_id = ?) +
			(SELECT COUNT(*) FROM claims WHERE applicant_id = ?)
	`, userID, userID).Scan(&references)
	if err != nil {
		return fmt.Errorf("failed to check user references: %w", err)
	}
	if references > 0 {
		return fmt.Errorf("%w: user %d", ErrReferenced, userID)
	}

	if user.HasPermission(models.PermUserManagement) {
		holders, err := r.countPermissionHolders(models.PermUserManagement)
		if err != nil {
			return err
		}
		if holders <= 1 {
			return fmt.Errorf("%w: user %d", ErrLastAdmin, userID)
		}
	}

	result, err := r.db.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
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

// List retrieves all users ordered by name
func (r *UserRepository) List() ([]*models.User, error) {
	rows, err := r.db.Query("SELECT " + userColumns + " FROM users ORDER BY name ASC")
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
