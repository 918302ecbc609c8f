// Package migrations embute os arquivos SQL de schema e seeds.
package migrations

import "embed"

// FS contém sql/*.up.sql, sql/*.down.sql e seeds/*.sql.
//
//go:embed sql/*.sql seeds/*.sql
var FS embed.FS
