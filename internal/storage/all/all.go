// Package all registers every Config Store backend.
package all

import (
	_ "github.com/lingyjava/page-parser/internal/storage/jsonfile"
	_ "github.com/lingyjava/page-parser/internal/storage/memory"
	_ "github.com/lingyjava/page-parser/internal/storage/mssql"
	_ "github.com/lingyjava/page-parser/internal/storage/postgres"
	_ "github.com/lingyjava/page-parser/internal/storage/sqlite"
)
