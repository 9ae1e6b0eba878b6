package upload_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
	"minimill/internal/testsupport"
	"minimill/internal/upload"
)

func newStage(t *testing.T) (*upload.Stage, func() []domain.FileMetadata) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stage := upload.NewStage(cfg, store, logging.NewNop())
	persisted := func() []domain.FileMetadata {
		files, err := store.LoadFiles(context.Background(), "s1")
		if err != nil {
			t.Fatalf("LoadFiles failed: %v", err)
		}
		return files
	}
	return stage, persisted
}

func TestValidatorMessages(t *testing.T) {
	v := upload.NewValidator([]string{"video/mp4", "video/avi", "video/mov", "video/wmv", "video/mkv", "video/webm"}, 500*testsupport.MiB)

	r := v.Check(domain.FileMetadata{Name: "notes.txt", Size: 10, Type: "text/plain"})
	if r == nil || r.Message != "notes.txt: Unsupported file type. Please use MP4, AVI, MOV, WMV, MKV, or WebM." {
		t.Fatalf("unexpected type rejection: %+v", r)
	}
	r = v.Check(testsupport.Video("big.mp4", 501))
	if r == nil || r.Message != "big.mp4: File too large. Maximum size is 500MB." {
		t.Fatalf("unexpected size rejection: %+v", r)
	}
	if r := v.Check(testsupport.Video("edge.mp4", 500)); r != nil {
		t.Fatalf("expected exactly 500 MiB to pass, got %+v", r)
	}
}

func TestValidatorChecksTypeBeforeSize(t *testing.T) {
	v := upload.NewValidator([]string{"video/mp4"}, testsupport.MiB)
	r := v.Check(domain.FileMetadata{Name: "huge.gif", Size: 10 * testsupport.MiB, Type: "image/gif"})
	if r == nil || !strings.Contains(r.Message, "Unsupported file type. Please use MP4.") {
		t.Fatalf("expected type rejection first, got %+v", r)
	}
}

func TestAddNeverPersistsRejectedFiles(t *testing.T) {
	stage, persisted := newStage(t)
	candidates := []domain.FileMetadata{
		testsupport.Video("ok.mp4", 50),
		{Name: "doc.pdf", Size: 1, Type: "application/pdf"},
		testsupport.Video("huge.mp4", 600),
		{Name: "clip.webm", Size: 1024, Type: "video/webm"},
	}
	result, err := stage.Add(context.Background(), "s1", upload.SourceDrop, candidates)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if result.Added != 2 || len(result.Rejected) != 2 || !result.CanProceed {
		t.Fatalf("unexpected result: %+v", result)
	}
	files := persisted()
	if len(files) != 2 || files[0].Name != "ok.mp4" || files[1].Name != "clip.webm" {
		t.Fatalf("unexpected persisted selection: %+v", files)
	}
}

func TestAddAccumulatesDuplicates(t *testing.T) {
	stage, persisted := newStage(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := stage.Add(ctx, "s1", upload.SourcePicker, []domain.FileMetadata{testsupport.Video("same.mp4", 1)}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	if got := len(persisted()); got != 2 {
		t.Fatalf("expected duplicates to accumulate, got %d files", got)
	}
}

func TestProceedGate(t *testing.T) {
	stage, _ := newStage(t)
	ctx := context.Background()

	_, err := stage.Proceed(ctx, "s1")
	if !errors.Is(err, upload.ErrEmptySelection) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected empty selection validation error, got %v", err)
	}
	if msg, _ := services.UserMessage(err); msg != "Please select at least one video file." {
		t.Fatalf("unexpected user message %q", msg)
	}

	if _, err := stage.Add(ctx, "s1", upload.SourcePicker, []domain.FileMetadata{testsupport.Video("a.mp4", 1)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	nav, err := stage.Proceed(ctx, "s1")
	if err != nil {
		t.Fatalf("Proceed failed: %v", err)
	}
	if nav.Stage != domain.StageOptions {
		t.Fatalf("expected navigation to options, got %+v", nav)
	}
}

func TestRemoveAndClear(t *testing.T) {
	stage, persisted := newStage(t)
	ctx := context.Background()
	files := []domain.FileMetadata{testsupport.Video("a.mp4", 1), testsupport.Video("b.mp4", 1), testsupport.Video("c.mp4", 1)}
	if _, err := stage.Add(ctx, "s1", upload.SourcePicker, files); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	result, err := stage.Remove(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(result.Selected) != 2 || result.Selected[1].Name != "c.mp4" {
		t.Fatalf("unexpected selection after remove: %+v", result.Selected)
	}
	if _, err := stage.Remove(ctx, "s1", 5); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for bad index, got %v", err)
	}

	result, err = stage.Clear(ctx, "s1")
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if result.CanProceed || len(persisted()) != 0 {
		t.Fatalf("expected empty selection after clear")
	}
}

func TestMetadataFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Match Footage.MP4")
	testsupport.WriteFile(t, path, 2048)

	meta, err := upload.MetadataFromPath(path)
	if err != nil {
		t.Fatalf("MetadataFromPath failed: %v", err)
	}
	if meta.Name != "Match Footage.MP4" || meta.Size != 2048 || meta.Type != "video/mp4" || meta.Path != path {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if meta.LastModified == 0 {
		t.Fatal("expected modification time")
	}
	if _, err := upload.MetadataFromPath(filepath.Dir(path)); err == nil {
		t.Fatal("expected error for directory")
	}
}

func TestParseSource(t *testing.T) {
	if s, err := upload.ParseSource(""); err != nil || s != upload.SourcePicker {
		t.Fatalf("expected picker default, got %q %v", s, err)
	}
	if _, err := upload.ParseSource("paste"); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
