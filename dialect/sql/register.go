package sql

import (
	// Registers the "mysql", "postgres" and "sqlite" database/sql drivers
	// Open uses by dialect name.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)
