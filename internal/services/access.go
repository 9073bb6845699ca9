package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/summitpanel/summit-api/internal/database"
	"github.com/summitpanel/summit-api/internal/models"
)

// AccessService computes which servers an account may operate on. Access is
// granted by ownership or by a subuser row; the union is de-duplicated by
// server ID and carries no ordering guarantee. Suspension is deliberately
// not enforced here: callers combine the result with Account.IsSuspended.
type AccessService struct {
	db *database.DB
}

func NewAccessService(db *database.DB) *AccessService {
	return &AccessService{db: db}
}

// AccessibleServers returns every server the account owns or is a subuser
// of. An account with no grants gets an empty result, not an error.
func (s *AccessService) AccessibleServers(ctx context.Context, accountID int64) ([]models.Server, error) {
	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT DISTINCT s.id, s.name, s.description, s.status, s.owner_id, s.created_at, s.updated_at
		FROM servers s
		LEFT JOIN subusers su ON su.server_id = s.id
		WHERE s.owner_id = $1 OR su.user_id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []models.Server
	for rows.Next() {
		var srv models.Server
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.Description, &srv.Status, &srv.OwnerID, &srv.CreatedAt, &srv.UpdatedAt); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

// AccessibleServerIDs is the identifier-only variant of AccessibleServers.
func (s *AccessService) AccessibleServerIDs(ctx context.Context, accountID int64) ([]uuid.UUID, error) {
	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT DISTINCT s.id
		FROM servers s
		LEFT JOIN subusers su ON su.server_id = s.id
		WHERE s.owner_id = $1 OR su.user_id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CanAccess reports whether the account owns or is a subuser of the server.
func (s *AccessService) CanAccess(ctx context.Context, serverID uuid.UUID, accountID int64) (bool, error) {
	var allowed bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM servers s
			LEFT JOIN subusers su ON su.server_id = s.id
			WHERE s.id = $1 AND (s.owner_id = $2 OR su.user_id = $2)
		)
	`, serverID, accountID).Scan(&allowed)
	return allowed, err
}

// IsOwner reports whether the account owns the server outright.
func (s *AccessService) IsOwner(ctx context.Context, serverID uuid.UUID, accountID int64) (bool, error) {
	var ownerID int64
	err := s.db.Pool.QueryRow(ctx, `SELECT owner_id FROM servers WHERE id = $1`, serverID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrServerNotFound
		}
		return false, err
	}
	return ownerID == accountID, nil
}

// AddSubuser delegates access on a server to another account. Granting to
// the owner is rejected; ownership already covers everything a subuser row
// would.
func (s *AccessService) AddSubuser(ctx context.Context, serverID uuid.UUID, accountID int64, permissions []string) (*models.Subuser, error) {
	isOwner, err := s.IsOwner(ctx, serverID, accountID)
	if err != nil {
		return nil, err
	}
	if isOwner {
		return nil, ErrCannotGrantOwner
	}
	if err := s.requireAccount(ctx, accountID); err != nil {
		return nil, err
	}

	if permissions == nil {
		permissions = []string{}
	}
	perms, err := json.Marshal(permissions)
	if err != nil {
		return nil, err
	}

	var sub models.Subuser
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO subusers (server_id, user_id, permissions)
		VALUES ($1, $2, $3)
		ON CONFLICT (server_id, user_id) DO NOTHING
		RETURNING id, server_id, user_id, created_at
	`, serverID, accountID, perms).Scan(&sub.ID, &sub.ServerID, &sub.UserID, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadySubuser
		}
		return nil, fmt.Errorf("failed to create subuser: %w", err)
	}
	sub.Permissions = permissions
	return &sub, nil
}

// RemoveSubuser revokes a delegated grant.
func (s *AccessService) RemoveSubuser(ctx context.Context, serverID uuid.UUID, accountID int64) error {
	var id uuid.UUID
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id FROM subusers WHERE server_id = $1 AND user_id = $2
	`, serverID, accountID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSubuserNotFound
		}
		return err
	}

	_, err = s.db.Pool.Exec(ctx, `DELETE FROM subusers WHERE id = $1`, id)
	return err
}

// GetSubusers lists delegated grants on a server together with the granted
// accounts.
func (s *AccessService) GetSubusers(ctx context.Context, serverID uuid.UUID) ([]models.Subuser, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT su.id, su.server_id, su.user_id, su.permissions, su.created_at,
		       a.id, a.uuid, a.username, a.email, a.language, a.root_admin, a.state, a.created_at, a.updated_at
		FROM subusers su
		JOIN accounts a ON su.user_id = a.id
		WHERE su.server_id = $1
		ORDER BY su.created_at
	`, serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subusers []models.Subuser
	for rows.Next() {
		var sub models.Subuser
		var account models.Account
		var perms []byte
		if err := rows.Scan(
			&sub.ID, &sub.ServerID, &sub.UserID, &perms, &sub.CreatedAt,
			&account.ID, &account.UUID, &account.Username, &account.Email, &account.Language,
			&account.RootAdmin, &account.State, &account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(perms, &sub.Permissions); err != nil {
			return nil, fmt.Errorf("failed to decode subuser permissions: %w", err)
		}
		sub.Account = &account
		subusers = append(subusers, sub)
	}
	return subusers, rows.Err()
}

func (s *AccessService) requireAccount(ctx context.Context, accountID int64) error {
	var exists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, accountID,
	).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}
