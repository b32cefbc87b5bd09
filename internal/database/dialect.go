package database

import (
	"strconv"
	"strings"

	"themesync/internal/database/migrations"
)

// dialect captures the SQL differences between the supported backends.
// Queries are written with ? placeholders and rebound per dialect.
type dialect struct {
	name string

	// numbered switches ? placeholders to $1, $2, ...
	numbered bool

	// forUpdate is appended to SELECTs that must hold row locks until the
	// transaction ends. SQLite takes the database write lock when the
	// transaction begins, so it needs none.
	forUpdate string
}

var (
	sqliteDialect = dialect{
		name: migrations.SQLite,
	}
	postgresDialect = dialect{
		name:      migrations.Postgres,
		numbered:  true,
		forUpdate: " FOR UPDATE",
	}
)

// rebind rewrites ? placeholders for the dialect. Queries never contain a
// literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
