// Package migrations embeds the continuity journal schema migrations.
package migrations

import "embed"

// FS contains the ordered SQL migration files for the journal store.
//
//go:embed *.sql
var FS embed.FS
