// Package migration applies the versioned SQL files of an fs.FS to a SQLite
// database.
//
// Files are named {version}_{description}.sql and versions must be gap free.
// Every applied version is recorded in schema_migrations with a BLAKE2b
// checksum; editing a file after it was applied fails with
// ErrChecksumMismatch.
//
//	manager := migration.NewManager(migration.NewScanner(files, "migrations"), migration.NewSQLiteExecutor(db), logger)
//	if err := manager.Up(ctx); err != nil {
//		return err
//	}
package migration
