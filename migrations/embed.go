// Package migrations embeds the SQL schema of the gear database.
//
// Import it for its side effect; init registers the files with the
// database package:
//
//	import _ "github.com/nerrad567/gray-logic-dali/migrations"
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-dali/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	database.RegisterMigrations(files)
}
