// Package migrations embeds the goose migration scripts for the client's
// local listing cache.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
