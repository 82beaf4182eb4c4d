// Package migrations contains embedded SQL migrations for the SQLite store.
package migrations

import "embed"

//go:embed rooms/*.sql
var RoomsFS embed.FS
