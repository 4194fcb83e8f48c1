package migrations

import "embed"

// FS contains the SQL migrations, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
