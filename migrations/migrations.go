// Package migrations embeds the goose SQL migrations of the remote store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
