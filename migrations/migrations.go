// Package migrations embeds the Postgres schema so binaries do not depend
// on a migrations directory next to them.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
