// Package ordering embeds the goose migrations for the ordering schema.
package ordering

import "embed"

// FS holds the ordering SQL migrations.
//
//go:embed *.sql
var FS embed.FS
