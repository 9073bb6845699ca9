package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/summitpanel/summit-api/internal/database"
	"github.com/summitpanel/summit-api/internal/locale"
	"github.com/summitpanel/summit-api/internal/models"
)

type stubDispatcher struct {
	calls    int
	accounts []*models.Account
}

func (d *stubDispatcher) DispatchBillingSync(_ context.Context, account *models.Account) error {
	d.calls++
	d.accounts = append(d.accounts, account)
	return nil
}

func setupAccountService(t *testing.T) (*AccountService, pgxmock.PgxPoolIface, *stubDispatcher) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	locales, err := locale.NewRegistry(nil)
	require.NoError(t, err)

	dispatcher := &stubDispatcher{}
	db := &database.DB{Pool: mock}
	return NewAccountService(db, locales, dispatcher), mock, dispatcher
}

var accountColumnNames = []string{
	"id", "uuid", "external_id", "billing_id", "username", "email", "password_hash", "language",
	"admin_role_id", "root_admin", "state", "use_totp", "totp_secret", "totp_authenticated_at",
	"created_at", "updated_at",
}

var accountJoinColumnNames = []string{
	"id", "uuid", "external_id", "billing_id", "username", "email", "password_hash", "language",
	"admin_role_id", "root_admin", "state", "use_totp", "totp_secret", "totp_authenticated_at",
	"created_at", "updated_at",
	"role_id", "role_name", "role_description", "role_created_at", "role_updated_at",
}

func accountRow(id int64, username, email string, billingID *string) []any {
	now := time.Now()
	return []any{
		id, uuid.New(), (*string)(nil), billingID, username, email, "$2a$10$hash", "en",
		(*int64)(nil), false, (*string)(nil), false, (*string)(nil), (*time.Time)(nil),
		now, now,
	}
}

func accountJoinRow(id int64, username, email string, billingID *string) []any {
	return append(accountRow(id, username, email, billingID),
		(*int64)(nil), (*string)(nil), (*string)(nil), (*time.Time)(nil), (*time.Time)(nil))
}

func expectNoDuplicate(mock pgxmock.PgxPoolIface, column, value string, excludeID int64) {
	mock.ExpectQuery(`SELECT EXISTS.+FROM accounts WHERE ` + column).
		WithArgs(value, excludeID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
}

func TestAccountService_Create(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()

	expectNoDuplicate(mock, "email", "steve@example.com", 0)
	expectNoDuplicate(mock, "username", "steve", 0)

	rows := pgxmock.NewRows(accountColumnNames).
		AddRow(accountRow(1, "steve", "steve@example.com", nil)...)
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(pgxmock.AnyArg(), (*string)(nil), (*string)(nil), "steve", "steve@example.com",
			pgxmock.AnyArg(), "en", (*int64)(nil), false).
		WillReturnRows(rows)

	account, err := svc.Create(ctx, CreateAccountInput{
		Username: "Steve",
		Email:    "steve@example.com",
		Password: "hunter42!!",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
	assert.Equal(t, "steve", account.Username)
	assert.Equal(t, 0, dispatcher.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Create_DuplicateEmail(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT EXISTS.+FROM accounts WHERE email`).
		WithArgs("taken@example.com", int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.Create(ctx, CreateAccountInput{
		Username: "steve",
		Email:    "taken@example.com",
		Password: "hunter42!!",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "email", vErr.Field)
	assert.Equal(t, "unique", vErr.Rule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Create_LostUniquenessRace(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()

	// Pre-checks pass, a concurrent writer commits first, the constraint
	// fires at insert time.
	expectNoDuplicate(mock, "email", "steve@example.com", 0)
	expectNoDuplicate(mock, "username", "steve", 0)
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(pgxmock.AnyArg(), (*string)(nil), (*string)(nil), "steve", "steve@example.com",
			pgxmock.AnyArg(), "en", (*int64)(nil), false).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "accounts_email_key"})

	_, err := svc.Create(ctx, CreateAccountInput{
		Username: "steve",
		Email:    "steve@example.com",
		Password: "hunter42!!",
	})

	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Create_UnsupportedLanguage(t *testing.T) {
	svc, _, _ := setupAccountService(t)

	_, err := svc.Create(context.Background(), CreateAccountInput{
		Username: "steve",
		Email:    "steve@example.com",
		Password: "hunter42!!",
		Language: "xx",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "language", vErr.Field)
}

func TestAccountService_Create_InvalidUsername(t *testing.T) {
	svc, _, _ := setupAccountService(t)

	_, err := svc.Create(context.Background(), CreateAccountInput{
		Username: "-steve-",
		Email:    "steve@example.com",
		Password: "hunter42!!",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "username", vErr.Field)
}

func TestAccountService_Create_ShortPassword(t *testing.T) {
	svc, _, _ := setupAccountService(t)

	_, err := svc.Create(context.Background(), CreateAccountInput{
		Username: "steve",
		Email:    "steve@example.com",
		Password: "short",
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "password", vErr.Field)
	assert.Equal(t, "min", vErr.Rule)
}

func TestAccountService_Update_DispatchesBillingSync(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()
	billingID := "cus_123"

	expectNoDuplicate(mock, "email", "steve@example.com", 7)
	expectNoDuplicate(mock, "username", "steve", 7)
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("steve", "steve@example.com", "en", (*string)(nil), &billingID,
			(*int64)(nil), false, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).
			AddRow(accountJoinRow(7, "steve", "steve@example.com", &billingID)...))

	account, err := svc.Update(ctx, 7, UpdateAccountInput{
		Username:  "Steve",
		Email:     "steve@example.com",
		BillingID: &billingID,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, account, dispatcher.accounts[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Update_NoBillingIdentitySkipsSync(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()

	expectNoDuplicate(mock, "email", "steve@example.com", 7)
	expectNoDuplicate(mock, "username", "steve", 7)
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("steve", "steve@example.com", "en", (*string)(nil), (*string)(nil),
			(*int64)(nil), false, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).
			AddRow(accountJoinRow(7, "steve", "steve@example.com", nil)...))

	_, err := svc.Update(ctx, 7, UpdateAccountInput{
		Username: "steve",
		Email:    "steve@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Update_NotFound(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()

	expectNoDuplicate(mock, "email", "ghost@example.com", 99)
	expectNoDuplicate(mock, "username", "ghost", 99)
	mock.ExpectExec(`UPDATE accounts`).
		WithArgs("ghost", "ghost@example.com", "en", (*string)(nil), (*string)(nil),
			(*int64)(nil), false, int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	_, err := svc.Update(ctx, 99, UpdateAccountInput{
		Username: "ghost",
		Email:    "ghost@example.com",
	})

	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, 0, dispatcher.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Suspend(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()
	suspended := models.StateSuspended

	mock.ExpectExec(`UPDATE accounts SET state`).
		WithArgs(&suspended, int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	row := accountJoinRow(3, "steve", "steve@example.com", nil)
	row[10] = &suspended
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).AddRow(row...))

	account, err := svc.Suspend(ctx, 3)

	require.NoError(t, err)
	assert.True(t, account.IsSuspended())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_UpdatePassword(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT password_hash FROM accounts`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow(string(hash)))
	mock.ExpectExec(`UPDATE accounts SET password_hash`).
		WithArgs(pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).
			AddRow(accountJoinRow(5, "steve", "steve@example.com", nil)...))

	err = svc.UpdatePassword(ctx, 5, "old-password", "new-password!")

	require.NoError(t, err)
	assert.Equal(t, 0, dispatcher.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_UpdatePassword_DispatchesBillingSync(t *testing.T) {
	svc, mock, dispatcher := setupAccountService(t)
	ctx := context.Background()
	billingID := "cus_456"

	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT password_hash FROM accounts`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow(string(hash)))
	mock.ExpectExec(`UPDATE accounts SET password_hash`).
		WithArgs(pgxmock.AnyArg(), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).
			AddRow(accountJoinRow(5, "steve", "steve@example.com", &billingID)...))

	err = svc.UpdatePassword(ctx, 5, "old-password", "new-password!")

	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.calls)
	assert.Equal(t, int64(5), dispatcher.accounts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_UpdatePassword_WrongCurrent(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT password_hash FROM accounts`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow(string(hash)))

	err = svc.UpdatePassword(ctx, 5, "not-the-password", "new-password!")

	assert.ErrorIs(t, err, ErrPasswordMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Delete_GuardsOwnedServers(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM servers`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	err := svc.Delete(ctx, 4)

	assert.ErrorIs(t, err, ErrHasActiveServers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_Delete(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM servers`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM accounts`).
		WithArgs(int64(4)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := svc.Delete(ctx, 4)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_GetByEmail_NotFound(t *testing.T) {
	svc, mock, _ := setupAccountService(t)

	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs("missing@example.com").
		WillReturnError(pgx.ErrNoRows)

	_, err := svc.GetByEmail(context.Background(), "missing@example.com")

	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_GetByID_PopulatesRole(t *testing.T) {
	svc, mock, _ := setupAccountService(t)
	now := time.Now()
	roleID := int64(2)
	roleName := "Support"

	row := accountRow(9, "alex", "alex@example.com", nil)
	row = append(row, &roleID, &roleName, (*string)(nil), &now, &now)
	mock.ExpectQuery(`SELECT .+ FROM accounts a`).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows(accountJoinColumnNames).AddRow(row...))

	account, err := svc.GetByID(context.Background(), 9)

	require.NoError(t, err)
	require.NotNil(t, account.AdminRole)
	assert.Equal(t, "Support", account.AdminRole.Name)
	name := account.RoleDisplayName()
	require.NotNil(t, name)
	assert.Equal(t, "Support", *name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
