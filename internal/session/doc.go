// Package session persists the workflow state of each user session: the
// selected files, the processing options, the current job id and the job
// records. Values are JSON documents in a (session_id, key) table; the last
// write wins. SQLite (modernc) is the default backend and PostgreSQL is
// reachable through pgx's database/sql driver.
package session
