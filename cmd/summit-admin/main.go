package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/summitpanel/summit-api/internal/config"
	"github.com/summitpanel/summit-api/internal/database"
)

func main() {
	if len(os.Args) != 3 || (os.Args[1] != "grant" && os.Args[1] != "revoke") {
		fmt.Println("Usage: summit-admin <grant|revoke> <email>")
		os.Exit(1)
	}

	action := os.Args[1]
	email := os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	rootAdmin := action == "grant"

	result, err := db.Pool.Exec(ctx, `
		UPDATE accounts SET root_admin = $1, updated_at = NOW()
		WHERE email = $2
	`, rootAdmin, email)
	if err != nil {
		log.Fatalf("Failed to update account: %v", err)
	}

	if result.RowsAffected() == 0 {
		log.Fatalf("No account found with email: %s", email)
	}

	if rootAdmin {
		fmt.Printf("Granted root admin to %s\n", email)
	} else {
		fmt.Printf("Revoked root admin from %s\n", email)
	}
}
