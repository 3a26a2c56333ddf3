// restore-seed is a one-shot tool to restore baseline master data.
// Run it after a fresh migrate, or when suppliers and logistics companies
// have been accidentally wiped.
//
// Usage: go run ./cmd/restore-seed
package main

import (
	"context"
	"log"
	"os"

	"fashion-backend/internal/db"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	log.Println("Restoring suppliers...")
	_, err = tx.Exec(ctx, `
		INSERT INTO suppliers (code, name, address, phone, is_active)
		VALUES
		  ('AZM', 'Azim Textiles',     'Anarkali Bazaar, Lahore', '+92-300-1110001', TRUE),
		  ('KHN', 'Khan Fabrics',      'Shah Alam Market, Lahore', '+92-300-1110002', TRUE),
		  ('MLK', 'Malik Garments',    'Faisalabad',               '+92-300-1110003', TRUE)
		ON CONFLICT (code) DO UPDATE
		  SET name = EXCLUDED.name,
		      address = EXCLUDED.address,
		      phone = EXCLUDED.phone,
		      is_active = TRUE;
	`)
	if err != nil {
		log.Fatalf("Failed to restore suppliers: %v", err)
	}

	log.Println("Restoring logistics companies...")
	_, err = tx.Exec(ctx, `
		INSERT INTO logistics_companies (code, name, is_active)
		VALUES
		  ('TCS', 'TCS Logistics',   TRUE),
		  ('LEO', 'Leopards Courier', TRUE)
		ON CONFLICT (code) DO NOTHING;
	`)
	if err != nil {
		log.Fatalf("Failed to restore logistics companies: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit: %v", err)
	}

	log.Println("Seed data restored successfully.")
	os.Exit(0)
}
