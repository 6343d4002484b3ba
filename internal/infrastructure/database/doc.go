// Package database provides SQLite connectivity for the configuration authority.
//
// This package manages:
//   - Database connection with WAL mode and enforced foreign keys
//   - Versioned schema migrations read from an fs.FS
//   - Transaction helper (InTx)
//
// All queries use parameterised statements and the database file is created
// with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
