package postgres

// SQL queries for PostgreSQL catalog lookups.
const (
	queryTypeName = `SELECT format_type($1::oid, NULL)`
)
