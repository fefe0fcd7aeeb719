// Package postgres embeds the goose migration scripts for PostgreSQL
// deployments.
package postgres

import "embed"

//go:embed *.sql
var Migrations embed.FS
