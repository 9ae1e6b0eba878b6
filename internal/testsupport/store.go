package testsupport

import (
	"context"
	"testing"

	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedFiles saves files as the session selection.
func SeedFiles(t testing.TB, store *session.Store, sid string, files ...domain.FileMetadata) {
	t.Helper()

	if err := store.SaveFiles(context.Background(), sid, files); err != nil {
		t.Fatalf("store.SaveFiles: %v", err)
	}
}

// SeedJob saves job and marks it as the current job of the session.
func SeedJob(t testing.TB, store *session.Store, sid string, job domain.Job) {
	t.Helper()

	ctx := context.Background()
	if err := store.SaveJob(ctx, sid, job); err != nil {
		t.Fatalf("store.SaveJob: %v", err)
	}
	if err := store.SetCurrentJob(ctx, sid, job.ID); err != nil {
		t.Fatalf("store.SetCurrentJob: %v", err)
	}
}
