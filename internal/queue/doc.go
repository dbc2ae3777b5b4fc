// Package queue persists classification work items in SQLite and defines
// their lifecycle.
//
// The Store manages database connections, schema initialization, the
// upsert-by-id write path, and the recovery query that rebuilds the working
// set after a restart. Items capture payload, priority, lifecycle
// timestamps, and the result or error of their processor run.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users clear the database to adopt the new schema.
//
// Treat this package as the single source of truth for item semantics; when
// you add new statuses or fields, update schema.sql and bump schemaVersion.
package queue
