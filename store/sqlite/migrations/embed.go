package migrations

import "embed"

// FS contains embedded SQLite migrations for payment storage.
//
//go:embed *.sql
var FS embed.FS
