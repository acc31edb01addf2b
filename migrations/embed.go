// Package migrations embeds the SQL migrations for each supported dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

// FS contains all migration SQL files, one directory per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS

// ForDialect returns the migrations for "sqlite" or "postgres".
func ForDialect(dialect string) (fs.FS, error) {
	switch dialect {
	case "sqlite", "postgres":
		return fs.Sub(FS, dialect)
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}
