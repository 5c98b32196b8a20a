/*
Package database wraps the gorm connection backing the run history.

Open builds a dialector from config.DatabaseConfig (sqlite on the pure Go
modernc driver, postgres or mysql) and hands the handle to a PoolManager,
which tunes the sql.DB pool, optionally pings it in the background and
runs transactions with retry on transient failures. The schema itself is
owned by internal/migration.
*/
package database
