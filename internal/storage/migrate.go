package storage

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL []byte

// schemaLockID keys the advisory lock held while the fleet schema is
// applied, so servers starting together do not race on DDL.
const schemaLockID int64 = 0x7461786967726964 // "taxigrid"

// schemaChecksum identifies the embedded schema.sql revision.
func schemaChecksum() string {
	sum := sha256.Sum256(schemaSQL)
	return hex.EncodeToString(sum[:])
}

// ApplySchema runs the embedded schema.sql unless its checksum is already
// recorded in fleet_schema_versions. The check, the DDL and the record share
// one transaction under an advisory lock.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	checksum := schemaChecksum()
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
			return fmt.Errorf("schema lock: %w", err)
		}
		if _, err := tx.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fleet_schema_versions (
	checksum TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
			return fmt.Errorf("schema versions table: %w", err)
		}

		var current bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM fleet_schema_versions WHERE checksum = $1)`, checksum,
		).Scan(&current); err != nil {
			return err
		}
		if current {
			return nil
		}

		if _, err := tx.Exec(ctx, string(schemaSQL)); err != nil {
			return fmt.Errorf("apply schema.sql: %w", err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO fleet_schema_versions (checksum) VALUES ($1)`, checksum)
		return err
	})
}
