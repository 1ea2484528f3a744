package migrations

import "embed"

// Migrations holds the SQL migrations for the sqlite driver.
//
//go:embed *.sql
var Migrations embed.FS
