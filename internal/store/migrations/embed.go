// Package migrations applies the embedded schema files for the
// PostgreSQL store and the ClickHouse archive. Embedding keeps the
// daemon self-contained; nothing reads schema from disk at run time.
package migrations

import "embed"

// PostgresFS embeds all PostgreSQL migration files.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds all ClickHouse migration files.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
