package sqlite

import (
	"fmt"
)

// RunMigrations applies any pending database migrations
func (db *DB) RunMigrations() error {
	if err := db.runTimestampMigration(); err != nil {
		return err
	}

	return nil
}

// Stores created before values were timestamped only carry key and value.
func (db *DB) runTimestampMigration() error {
	// Check if timestamp columns exist
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*)
		FROM pragma_table_info('kv_store')
		WHERE name IN ('created_at', 'updated_at')
	`).Scan(&count)

	if err != nil {
		return fmt.Errorf("checking for timestamp columns: %w", err)
	}

	if count >= 2 {
		return nil
	}

	db.log.Infow("running migration: adding timestamp columns", "table", "kv_store")

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// SQLite only accepts constant defaults in ALTER TABLE
	_, err = tx.Exec(`ALTER TABLE kv_store ADD COLUMN created_at DATETIME`)
	if err != nil && err.Error() != "duplicate column name: created_at" {
		return fmt.Errorf("adding created_at column: %w", err)
	}

	_, err = tx.Exec(`ALTER TABLE kv_store ADD COLUMN updated_at DATETIME`)
	if err != nil && err.Error() != "duplicate column name: updated_at" {
		return fmt.Errorf("adding updated_at column: %w", err)
	}

	if _, err := tx.Exec(`UPDATE kv_store SET created_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE created_at IS NULL`); err != nil {
		return fmt.Errorf("backfilling timestamps: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration: %w", err)
	}

	db.log.Infow("migration completed", "table", "kv_store")
	return nil
}
