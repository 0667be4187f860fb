// Package database provides the SQLite handle for the bridge's persisted state.
//
// The bridge keeps very little on disk: the app install id, the resolved
// zone per region and the last cloud login. All of it lives in a small
// key/value table created by the embedded migrations.
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
