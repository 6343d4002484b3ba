// Package migrations embeds the authority's SQL schema migrations into the binary.
package migrations

import "embed"

// FS holds every *.up.sql / *.down.sql file at its root. Pass it to
// (*database.DB).Migrate.
//
//go:embed *.sql
var FS embed.FS
