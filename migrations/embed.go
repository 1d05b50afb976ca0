// Package migrations embeds the PostgreSQL schema applied by
// database.RunMigrations at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
