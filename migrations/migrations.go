// Package migrations embeds the SQL schema migrations applied at startup
// in managed-database mode.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
