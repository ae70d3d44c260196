// Package migrations holds the bun migrations for the authority's tables.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
