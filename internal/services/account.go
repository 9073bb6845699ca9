package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/summitpanel/summit-api/internal/database"
	"github.com/summitpanel/summit-api/internal/locale"
	"github.com/summitpanel/summit-api/internal/models"
)

// Dispatcher hands a committed account mutation to the background billing
// queue. Enqueue failures are logged by the service and never surfaced to
// the mutating caller.
type Dispatcher interface {
	DispatchBillingSync(ctx context.Context, account *models.Account) error
}

// Usernames are stored lowercase and may not begin or end with a separator.
var usernameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

const accountColumns = `id, uuid, external_id, billing_id, username, email, password_hash, language,
	admin_role_id, root_admin, state, use_totp, totp_secret, totp_authenticated_at, created_at, updated_at`

type AccountService struct {
	db         *database.DB
	locales    *locale.Registry
	validate   *validator.Validate
	dispatcher Dispatcher
}

// NewAccountService creates an AccountService. The dispatcher may be nil for
// callers that never mutate accounts (or, like the admin CLI, tolerate a
// skipped billing sync).
func NewAccountService(db *database.DB, locales *locale.Registry, dispatcher Dispatcher) *AccountService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})

	return &AccountService{db: db, locales: locales, validate: v, dispatcher: dispatcher}
}

type CreateAccountInput struct {
	Username    string  `json:"username" validate:"required,max=191,username"`
	Email       string  `json:"email" validate:"required,email,max=191"`
	Password    string  `json:"password" validate:"required,min=8,max=191"`
	Language    string  `json:"language" validate:"omitempty,max=10"`
	ExternalID  *string `json:"external_id" validate:"omitempty,max=191"`
	BillingID   *string `json:"billing_id" validate:"omitempty,max=191"`
	AdminRoleID *int64  `json:"admin_role_id"`
	RootAdmin   bool    `json:"root_admin"`
}

type UpdateAccountInput struct {
	Username    string  `json:"username" validate:"required,max=191,username"`
	Email       string  `json:"email" validate:"required,email,max=191"`
	Language    string  `json:"language" validate:"omitempty,max=10"`
	ExternalID  *string `json:"external_id" validate:"omitempty,max=191"`
	BillingID   *string `json:"billing_id" validate:"omitempty,max=191"`
	AdminRoleID *int64  `json:"admin_role_id"`
	RootAdmin   bool    `json:"root_admin"`
}

// Create validates and persists a new account. The UUID is assigned here and
// never changes afterwards.
func (s *AccountService) Create(ctx context.Context, input CreateAccountInput) (*models.Account, error) {
	input.Username = models.NormalizeUsername(input.Username)
	if input.Language == "" {
		input.Language = locale.DefaultCode
	}

	if err := s.validateStruct(input); err != nil {
		return nil, err
	}
	if !s.locales.Has(input.Language) {
		return nil, &ValidationError{Field: "language", Rule: "supported"}
	}
	if err := s.checkUnique(ctx, "email", input.Email, 0); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, "username", input.Username, 0); err != nil {
		return nil, err
	}
	if input.ExternalID != nil {
		if err := s.checkUnique(ctx, "external_id", *input.ExternalID, 0); err != nil {
			return nil, err
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (uuid, external_id, billing_id, username, email, password_hash, language, admin_role_id, root_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+accountColumns,
		uuid.New(), input.ExternalID, input.BillingID, input.Username, input.Email,
		string(hashed), input.Language, input.AdminRoleID, input.RootAdmin,
	)

	account, err := scanAccount(row)
	if err != nil {
		// The application-level pre-checks race against concurrent writers;
		// the unique constraints stay authoritative.
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Update rewrites an account's profile fields and, once the write has
// committed, hands the account to the billing dispatcher.
func (s *AccountService) Update(ctx context.Context, id int64, input UpdateAccountInput) (*models.Account, error) {
	input.Username = models.NormalizeUsername(input.Username)
	if input.Language == "" {
		input.Language = locale.DefaultCode
	}

	if err := s.validateStruct(input); err != nil {
		return nil, err
	}
	if !s.locales.Has(input.Language) {
		return nil, &ValidationError{Field: "language", Rule: "supported"}
	}
	if err := s.checkUnique(ctx, "email", input.Email, id); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, "username", input.Username, id); err != nil {
		return nil, err
	}
	if input.ExternalID != nil {
		if err := s.checkUnique(ctx, "external_id", *input.ExternalID, id); err != nil {
			return nil, err
		}
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE accounts
		SET username = $1, email = $2, language = $3, external_id = $4, billing_id = $5,
			admin_role_id = $6, root_admin = $7, updated_at = NOW()
		WHERE id = $8
	`, input.Username, input.Email, input.Language, input.ExternalID, input.BillingID,
		input.AdminRoleID, input.RootAdmin, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dispatchSync(ctx, account)
	return account, nil
}

// UpdatePassword verifies the current password before storing a new hash.
func (s *AccountService) UpdatePassword(ctx context.Context, id int64, currentPassword, newPassword string) error {
	var hash string
	err := s.db.Pool.QueryRow(ctx, `SELECT password_hash FROM accounts WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(currentPassword)); err != nil {
		return ErrPasswordMismatch
	}
	if len(newPassword) < 8 {
		return &ValidationError{Field: "password", Rule: "min"}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	_, err = s.db.Pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $1, updated_at = NOW() WHERE id = $2
	`, string(hashed), id)
	if err != nil {
		return err
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.dispatchSync(ctx, account)
	return nil
}

// Suspend blocks the account from server access until reinstated.
func (s *AccountService) Suspend(ctx context.Context, id int64) (*models.Account, error) {
	state := models.StateSuspended
	return s.setState(ctx, id, &state)
}

// Reinstate clears the suspended state.
func (s *AccountService) Reinstate(ctx context.Context, id int64) (*models.Account, error) {
	return s.setState(ctx, id, nil)
}

func (s *AccountService) setState(ctx context.Context, id int64, state *string) (*models.Account, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE accounts SET state = $1, updated_at = NOW() WHERE id = $2
	`, state, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update account state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	account, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dispatchSync(ctx, account)
	return account, nil
}

// Delete removes an account. Accounts that still own servers cannot be
// deleted; servers must be transferred or removed first.
func (s *AccountService) Delete(ctx context.Context, id int64) error {
	var owned int
	err := s.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM servers WHERE owner_id = $1`, id).Scan(&owned)
	if err != nil {
		return err
	}
	if owned > 0 {
		return ErrHasActiveServers
	}

	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *AccountService) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return s.getBy(ctx, "a.id", id)
}

func (s *AccountService) GetByUUID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.getBy(ctx, "a.uuid", id)
}

func (s *AccountService) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.getBy(ctx, "a.email", email)
}

func (s *AccountService) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	return s.getBy(ctx, "a.external_id", externalID)
}

func (s *AccountService) getBy(ctx context.Context, column string, value any) (*models.Account, error) {
	row := s.db.Pool.QueryRow(ctx, `
		SELECT a.id, a.uuid, a.external_id, a.billing_id, a.username, a.email, a.password_hash, a.language,
			a.admin_role_id, a.root_admin, a.state, a.use_totp, a.totp_secret, a.totp_authenticated_at,
			a.created_at, a.updated_at,
			r.id, r.name, r.description, r.created_at, r.updated_at
		FROM accounts a
		LEFT JOIN admin_roles r ON a.admin_role_id = r.id
		WHERE `+column+` = $1
	`, value)

	var account models.Account
	var roleID *int64
	var roleName, roleDesc *string
	var roleCreated, roleUpdated *time.Time

	err := row.Scan(
		&account.ID, &account.UUID, &account.ExternalID, &account.BillingID,
		&account.Username, &account.Email, &account.PasswordHash, &account.Language,
		&account.AdminRoleID, &account.RootAdmin, &account.State, &account.UseTOTP,
		&account.TOTPSecret, &account.TOTPAuthenticatedAt, &account.CreatedAt, &account.UpdatedAt,
		&roleID, &roleName, &roleDesc, &roleCreated, &roleUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if roleID != nil && roleName != nil {
		account.AdminRole = &models.AdminRole{
			ID:          *roleID,
			Name:        *roleName,
			Description: roleDesc,
		}
		if roleCreated != nil {
			account.AdminRole.CreatedAt = *roleCreated
		}
		if roleUpdated != nil {
			account.AdminRole.UpdatedAt = *roleUpdated
		}
	}
	return &account, nil
}

// Authenticate verifies an email/password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.Account, error) {
	account, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrPasswordMismatch
	}
	return account, nil
}

func (s *AccountService) validateStruct(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return &ValidationError{Field: fieldErrs[0].Field(), Rule: fieldErrs[0].Tag()}
	}
	return err
}

// checkUnique runs the descriptive application-level pre-check. excludeID is
// the record being updated, or zero on create.
func (s *AccountService) checkUnique(ctx context.Context, column, value string, excludeID int64) error {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE `+column+` = $1 AND id <> $2)`,
		value, excludeID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return &ValidationError{Field: column, Rule: "unique"}
	}
	return nil
}

func (s *AccountService) dispatchSync(ctx context.Context, account *models.Account) {
	if s.dispatcher == nil || !account.HasBillingID() {
		return
	}
	// Post-commit, fire and forget. The sync job owns its own retry policy.
	if err := s.dispatcher.DispatchBillingSync(context.WithoutCancel(ctx), account); err != nil {
		log.Warn().Err(err).Int64("account_id", account.ID).Msg("failed to enqueue billing sync")
	}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.ID, &account.UUID, &account.ExternalID, &account.BillingID,
		&account.Username, &account.Email, &account.PasswordHash, &account.Language,
		&account.AdminRoleID, &account.RootAdmin, &account.State, &account.UseTOTP,
		&account.TOTPSecret, &account.TOTPAuthenticatedAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}
