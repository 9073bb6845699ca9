package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/summitpanel/summit-api/internal/database"
	"github.com/summitpanel/summit-api/internal/models"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateAccount creates a test account with default values
func (f *Fixtures) CreateAccount(t *testing.T, opts ...AccountOption) *models.Account {
	t.Helper()
	f.counter++

	account := &models.Account{
		UUID:         uuid.New(),
		Username:     fmt.Sprintf("player%d", f.counter),
		Email:        fmt.Sprintf("player%d@example.com", f.counter),
		PasswordHash: "$2a$10$fixture",
		Language:     "en",
	}

	for _, opt := range opts {
		opt(account)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO accounts (uuid, external_id, billing_id, username, email, password_hash, language, root_admin, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, account.UUID, account.ExternalID, account.BillingID, account.Username, account.Email,
		account.PasswordHash, account.Language, account.RootAdmin, account.State,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create account: %v", err)
	}

	return account
}

// AccountOption configures a test account
type AccountOption func(*models.Account)

// WithUsername sets the account's username
func WithUsername(username string) AccountOption {
	return func(a *models.Account) {
		a.Username = username
	}
}

// WithEmail sets the account's email
func WithEmail(email string) AccountOption {
	return func(a *models.Account) {
		a.Email = email
	}
}

// WithBillingID links the account to a billing customer
func WithBillingID(billingID string) AccountOption {
	return func(a *models.Account) {
		a.BillingID = &billingID
	}
}

// WithRootAdmin marks the account as a root admin
func WithRootAdmin() AccountOption {
	return func(a *models.Account) {
		a.RootAdmin = true
	}
}

// Suspended marks the account as suspended
func Suspended() AccountOption {
	return func(a *models.Account) {
		state := models.StateSuspended
		a.State = &state
	}
}

// CreateServer creates a test server owned by the given account
func (f *Fixtures) CreateServer(t *testing.T, owner *models.Account, opts ...ServerOption) *models.Server {
	t.Helper()
	f.counter++

	server := &models.Server{
		Name:    fmt.Sprintf("Test Server %d", f.counter),
		Status:  models.ServerStatusOnline,
		OwnerID: owner.ID,
	}

	for _, opt := range opts {
		opt(server)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO servers (name, description, status, owner_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, server.Name, server.Description, server.Status, server.OwnerID,
	).Scan(&server.ID, &server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	return server
}

// ServerOption configures a test server
type ServerOption func(*models.Server)

// WithServerName sets the server's name
func WithServerName(name string) ServerOption {
	return func(s *models.Server) {
		s.Name = name
	}
}

// WithStatus sets the server's status
func WithStatus(status string) ServerOption {
	return func(s *models.Server) {
		s.Status = status
	}
}

// AddSubuser grants the account delegated access to the server
func (f *Fixtures) AddSubuser(t *testing.T, server *models.Server, account *models.Account) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO subusers (server_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (server_id, user_id) DO NOTHING
	`, server.ID, account.ID)
	if err != nil {
		t.Fatalf("failed to add subuser: %v", err)
	}
}

// CreateAdminRole creates a test admin role
func (f *Fixtures) CreateAdminRole(t *testing.T, name string) *models.AdminRole {
	t.Helper()

	role := &models.AdminRole{Name: name}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO admin_roles (name)
		VALUES ($1)
		RETURNING id, created_at, updated_at
	`, role.Name).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create admin role: %v", err)
	}

	return role
}
