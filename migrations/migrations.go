// Package migrations embeds the ledger schema migrations applied by
// db.Client.RunMigrations.
package migrations

import "embed"

//go:embed *.sql atlas.sum
var FS embed.FS
