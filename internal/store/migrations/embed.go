// Package migrations embeds the schema of the local snapshot database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
