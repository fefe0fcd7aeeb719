// Package sqlite embeds the goose migration scripts for SQLite
// deployments.
package sqlite

import "embed"

//go:embed *.sql
var Migrations embed.FS
