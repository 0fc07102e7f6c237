// Package migrations embeds the database schema migrations so binaries
// can bring a fresh database up to date without shipping SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
