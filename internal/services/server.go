package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/summitpanel/summit-api/internal/database"
	"github.com/summitpanel/summit-api/internal/models"
)

// ServerService persists the server records the access resolver reads.
// Provisioning of the actual game-server daemons happens elsewhere; this
// service only owns the panel-side rows.
type ServerService struct {
	db *database.DB
}

func NewServerService(db *database.DB) *ServerService {
	return &ServerService{db: db}
}

type CreateServerInput struct {
	Name        string
	Description *string
	OwnerID     int64
}

func (s *ServerService) Create(ctx context.Context, input CreateServerInput) (*models.Server, error) {
	var ownerExists bool
	err := s.db.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, input.OwnerID,
	).Scan(&ownerExists)
	if err != nil {
		return nil, err
	}
	if !ownerExists {
		return nil, ErrAccountNotFound
	}

	var srv models.Server
	err = s.db.Pool.QueryRow(ctx, `
		INSERT INTO servers (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, status, owner_id, created_at, updated_at
	`, input.Name, input.Description, input.OwnerID).Scan(
		&srv.ID, &srv.Name, &srv.Description, &srv.Status, &srv.OwnerID, &srv.CreatedAt, &srv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return &srv, nil
}

func (s *ServerService) GetByID(ctx context.Context, id uuid.UUID) (*models.Server, error) {
	var srv models.Server
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, status, owner_id, created_at, updated_at
		FROM servers WHERE id = $1
	`, id).Scan(&srv.ID, &srv.Name, &srv.Description, &srv.Status, &srv.OwnerID, &srv.CreatedAt, &srv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	return &srv, nil
}

// ListOwnedBy returns servers the account owns directly, without delegated
// grants.
func (s *ServerService) ListOwnedBy(ctx context.Context, accountID int64) ([]models.Server, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id, name, description, status, owner_id, created_at, updated_at
		FROM servers WHERE owner_id = $1
		ORDER BY created_at DESC
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

func (s *ServerService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE servers SET status = $1, updated_at = NOW() WHERE id = $2
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}

func (s *ServerService) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrServerNotFound
	}
	return nil
}
