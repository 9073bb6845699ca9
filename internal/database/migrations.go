package database

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS admin_roles (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(191) UNIQUE NOT NULL,
		description TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGSERIAL PRIMARY KEY,
		uuid UUID UNIQUE NOT NULL,
		external_id VARCHAR(191) UNIQUE,
		billing_id VARCHAR(191),
		username VARCHAR(191) UNIQUE NOT NULL,
		email VARCHAR(191) UNIQUE NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		language VARCHAR(10) NOT NULL DEFAULT 'en',
		admin_role_id BIGINT REFERENCES admin_roles(id) ON DELETE SET NULL,
		root_admin BOOLEAN NOT NULL DEFAULT FALSE,
		state VARCHAR(50),
		use_totp BOOLEAN NOT NULL DEFAULT FALSE,
		totp_secret VARCHAR(255),
		totp_authenticated_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS servers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name VARCHAR(191) NOT NULL,
		description TEXT,
		status VARCHAR(50) NOT NULL DEFAULT 'installing',
		owner_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE RESTRICT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS subusers (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		server_id UUID NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
		user_id BIGINT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		permissions JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		UNIQUE(server_id, user_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_accounts_external_id ON accounts(external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_servers_owner_id ON servers(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subusers_server_id ON subusers(server_id)`,
	`CREATE INDEX IF NOT EXISTS idx_subusers_user_id ON subusers(user_id)`,
}

func (db *DB) Migrate(ctx context.Context) error {
	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
