// Package db embeds the SQL migration files so binaries and tests can
// apply the schema without a checkout-relative path.
package db

import "embed"

//go:embed migrations/*.sql
var MigrationFS embed.FS
