// Package migrations embeds the SQLite schema into the binary.
//
// Importing this package for its side effect registers the files with the
// database package:
//
//	import _ "github.com/hydrocloud/hydro-core/migrations"
package migrations

import (
	"embed"

	"github.com/hydrocloud/hydro-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
}
