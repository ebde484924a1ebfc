// Package migrations embeds the Postgres schema migrations (golang-migrate format).
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "sql"
