package session

import (
	"context"
	"fmt"
)

// Health captures diagnostic information about the session store.
type Health struct {
	Driver        string `json:"driver"`
	Location      string `json:"location"`
	SchemaVersion int    `json:"schemaVersion"`
	Sessions      int    `json:"sessions"`
	Jobs          int    `json:"jobs"`
	Error         string `json:"error,omitempty"`
}

// Health reports the backend, schema version and row counts. Query failures
// are recorded on the result as well as returned.
func (s *Store) Health(ctx context.Context) (Health, error) {
	health := Health{Driver: s.driver, Location: s.location}
	if err := s.db.PingContext(ensureContext(ctx)); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping session store: %w", err)
	}
	version, err := s.readSchemaVersion(ctx)
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}
	health.SchemaVersion = version

	row := s.queryRow(ctx, `SELECT COUNT(DISTINCT session_id),
COALESCE(SUM(CASE WHEN key LIKE ? THEN 1 ELSE 0 END), 0) FROM session_kv`, jobKeyPrefix+"%")
	if err := row.Scan(&health.Sessions, &health.Jobs); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count sessions: %w", err)
	}
	return health, nil
}
