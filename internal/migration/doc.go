/*
Package migration versions the run history schema with golang-migrate.

The SQL files for postgres, mysql and sqlite are embedded and applied
through the matching golang-migrate database driver; sqlite uses the pure
Go modernc driver. NewMigratorFromConfig targets the database described by
config.DatabaseConfig, and CLI renders the operations behind
`nodeflow migrate`.
*/
package migration
