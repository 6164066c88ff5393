// Package migrations embeds the goose migrations for the project index.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
