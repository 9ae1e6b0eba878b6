package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"minimill/internal/api"
	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/options"
	"minimill/internal/progress"
	"minimill/internal/results"
	"minimill/internal/session"
	"minimill/internal/testsupport"
	"minimill/internal/upload"
	"minimill/internal/web"
)

const sid = "web-session"

type harness struct {
	cfg     *config.Config
	store   *session.Store
	handler http.Handler
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	be := backend.NewSimulator(cfg.Timings())
	logger := logging.NewNop()

	mgr := progress.NewManager(cfg, store, be, nil, logger)
	t.Cleanup(mgr.Shutdown)
	opt := options.NewStage(cfg, store, be, mgr, logger)

	srv, err := web.New(web.Deps{
		Config:   cfg,
		Store:    store,
		Upload:   upload.NewStage(cfg, store, logger),
		Options:  opt,
		Progress: mgr,
		Results:  results.NewStage(cfg, store, be, logger),
		Backend:  be.Name(),
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("web.New: %v", err)
	}
	return &harness{cfg: cfg, store: store, handler: srv.Handler()}
}

func (h *harness) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-Session-ID", sid)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.serve(t, req)
}

func (h *harness) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	var env api.Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func TestHealthReportsStore(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var health api.HealthResponse
	if err := env.Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Backend != "simulator" || health.StoreDriver != "sqlite" {
		t.Fatalf("unexpected health: %+v", health)
	}
	if health.SchemaVersion == 0 {
		t.Fatal("expected schema version")
	}
}

func TestSessionCookieIssuedOnFirstContact(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec, env := h.serve(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "minimill_session" || cookies[0].Value == "" {
		t.Fatalf("expected session cookie, got %+v", cookies)
	}
	var resp api.SessionResponse
	if err := env.Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID != cookies[0].Value || resp.Stage != domain.StageUpload {
		t.Fatalf("unexpected session: %+v", resp)
	}
	if resp.Options.DetectionMode != domain.Mode6mm || !resp.Options.HighQuality {
		t.Fatalf("expected default options, got %+v", resp.Options)
	}

	again := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	again.AddCookie(cookies[0])
	rec, _ = h.serve(t, again)
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("expected existing cookie to be reused")
	}
}

func TestAddFilesRejectsInvalidAndKeepsValid(t *testing.T) {
	h := newHarness(t)
	big := testsupport.Video("huge.mp4", 501)
	doc := domain.FileMetadata{Name: "notes.pdf", Size: 1024, Type: "application/pdf", LastModified: 1}
	rec, env := h.do(t, http.MethodPost, "/api/upload/files", api.AddFilesRequest{
		Source: "drop",
		Files:  []domain.FileMetadata{testsupport.Video("clip.mp4", 50), big, doc},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var res upload.Result
	if err := env.Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Selected) != 1 || res.Selected[0].Name != "clip.mp4" || len(res.Rejected) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if env.Notice == nil || env.Notice.Type != domain.NoticeError {
		t.Fatalf("expected error notice, got %+v", env.Notice)
	}
	lines := strings.Split(env.Notice.Message, "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "huge.mp4: ") || !strings.HasPrefix(lines[1], "notes.pdf: ") {
		t.Fatalf("notice should list one rejected file per line: %q", env.Notice.Message)
	}

	files, err := h.store.LoadFiles(context.Background(), sid)
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one persisted file, got %v (%v)", files, err)
	}
}

func TestAddFilesMultipartMeasuresParts(t *testing.T) {
	h := newHarness(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("source", "picker"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="files"; filename="clip.webm"`)
	header.Set("Content-Type", "video/webm")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(bytes.Repeat([]byte{1}, 2048)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	// No Content-Type: the type comes from the extension.
	raw, err := mw.CreateFormFile("files", "movie.mkv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	raw.Write([]byte("abc"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/upload/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Session-ID", sid)
	rec, env := h.serve(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var res upload.Result
	if err := env.Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Selected) != 2 {
		t.Fatalf("expected two files, got %+v", res)
	}
	if res.Selected[0].Size != 2048 || res.Selected[0].Type != "video/webm" {
		t.Fatalf("unexpected first file: %+v", res.Selected[0])
	}
	if res.Selected[1].Type != "video/mkv" || res.Selected[1].Size != 3 {
		t.Fatalf("unexpected second file: %+v", res.Selected[1])
	}
}

func TestProceedRequiresSelection(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/upload/proceed", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Notice == nil || env.Notice.Message != "Please select at least one video file." || env.Notice.Type != domain.NoticeWarning {
		t.Fatalf("unexpected notice %+v", env.Notice)
	}

	testsupport.SeedFiles(t, h.store, sid, testsupport.Video("clip.mp4", 5))
	rec, env = h.do(t, http.MethodPost, "/api/upload/proceed", nil)
	if rec.Code != http.StatusOK || env.Navigate == nil || env.Navigate.Stage != domain.StageOptions {
		t.Fatalf("expected navigation to options, got %d %+v", rec.Code, env.Navigate)
	}
}

func TestRemoveFileBadIndex(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedFiles(t, h.store, sid, testsupport.Video("clip.mp4", 5))

	rec, _ := h.do(t, http.MethodDelete, "/api/upload/files/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", rec.Code)
	}
	rec, _ = h.do(t, http.MethodDelete, "/api/upload/files/3", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range index, got %d", rec.Code)
	}
	rec, env := h.do(t, http.MethodDelete, "/api/upload/files/0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var res upload.Result
	if err := env.Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.CanProceed || len(res.Selected) != 0 {
		t.Fatalf("expected empty selection, got %+v", res)
	}
}

func TestOptionsUpdateAndEstimate(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedFiles(t, h.store, sid, testsupport.Video("a.mp4", 5), testsupport.Video("b.mp4", 5))

	mode := "4mm"
	rec, env := h.do(t, http.MethodPatch, "/api/options", domain.OptionsPatch{DetectionMode: &mode})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var summary options.Summary
	if err := env.Decode(&summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.Options.DetectionMode != domain.Mode4mm || summary.Estimate.Minutes != 6 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	bad := "5mm"
	rec, env = h.do(t, http.MethodPatch, "/api/options", domain.OptionsPatch{DetectionMode: &bad})
	if rec.Code != http.StatusBadRequest || env.Notice == nil {
		t.Fatalf("expected validation failure, got %d %+v", rec.Code, env.Notice)
	}
}

func TestStartWithoutFilesWarns(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/options/start", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Notice == nil || env.Notice.Message != "No files selected for processing." {
		t.Fatalf("unexpected notice %+v", env.Notice)
	}
}

func TestWorkflowRunsToResults(t *testing.T) {
	h := newHarness(t)
	testsupport.SeedFiles(t, h.store, sid, testsupport.Video("clip.mp4", 50))

	rec, env := h.do(t, http.MethodPost, "/api/options/start", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start failed %d: %s", rec.Code, rec.Body.String())
	}
	if env.Navigate == nil || env.Navigate.Stage != domain.StageProgress {
		t.Fatalf("expected navigation to progress, got %+v", env.Navigate)
	}
	var started options.StartResult
	if err := env.Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if started.Job.Status != domain.JobProcessing || started.Job.EstimatedDuration != 2 {
		t.Fatalf("unexpected job: %+v", started.Job)
	}

	deadline := time.Now().Add(10 * time.Second)
	var snap progress.Snapshot
	for time.Now().Before(deadline) {
		_, env = h.do(t, http.MethodGet, "/api/progress", nil)
		if err := env.Decode(&snap); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if snap.State.Terminal() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if snap.State != progress.StateCompleted {
		t.Fatalf("expected completion, got %+v", snap)
	}
	if env.Navigate == nil || env.Navigate.Stage != domain.StageResults {
		t.Fatalf("expected navigation to results, got %+v", env.Navigate)
	}

	_, env = h.do(t, http.MethodGet, "/api/progress/events?since=0", nil)
	var events api.EventsResponse
	if err := env.Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	navigations := 0
	for _, ev := range events.Events {
		if ev.Type == progress.EventNavigate {
			navigations++
		}
	}
	if navigations != 1 || events.Next == 0 {
		t.Fatalf("expected exactly one navigation event, got %d (next %d)", navigations, events.Next)
	}

	_, env = h.do(t, http.MethodGet, "/api/session", nil)
	var sess api.SessionResponse
	if err := env.Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Stage != domain.StageResults {
		t.Fatalf("expected results stage, got %q", sess.Stage)
	}

	rec, env = h.do(t, http.MethodGet, "/api/results", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("results failed %d: %s", rec.Code, rec.Body.String())
	}
	var view results.View
	if err := env.Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.OriginalFileName != "clip.mp4" || view.MediaURL != "http://minimill.test/api/results/media" {
		t.Fatalf("unexpected view: %+v", view)
	}

	rec, _ = h.do(t, http.MethodGet, "/api/results/download?quality=standard", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download failed %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "processed_video_"+started.Job.ID+".mp4") {
		t.Fatalf("unexpected disposition %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected media bytes")
	}

	rec, env = h.do(t, http.MethodDelete, "/api/session", nil)
	if rec.Code != http.StatusOK || env.Navigate == nil || env.Navigate.Stage != domain.StageUpload {
		t.Fatalf("expected process-another navigation, got %d %+v", rec.Code, env.Navigate)
	}
	rec, _ = h.do(t, http.MethodGet, "/api/jobs", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), started.Job.ID) {
		t.Fatalf("job history should survive process another: %s", rec.Body.String())
	}
}

func TestDownloadRejectsUnknownQuality(t *testing.T) {
	h := newHarness(t)
	job, err := domain.NewJob("job_q", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, domain.DefaultOptions(), 2, time.Now())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = domain.JobCompleted
	testsupport.SeedJob(t, h.store, sid, job)

	rec, _ := h.do(t, http.MethodGet, "/api/results/download?quality=ultra", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMissingJobRedirectsToUpload(t *testing.T) {
	h := newHarness(t)
	for _, path := range []string{"/api/progress", "/api/results"} {
		rec, env := h.do(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusConflict {
			t.Fatalf("%s: expected 409, got %d", path, rec.Code)
		}
		if env.Navigate == nil || env.Navigate.Stage != domain.StageUpload || env.Navigate.DelayMS != h.cfg.Timings().RedirectDelay.Milliseconds() {
			t.Fatalf("%s: unexpected navigation %+v", path, env.Navigate)
		}
		if env.Notice == nil || env.Notice.Type != domain.NoticeError {
			t.Fatalf("%s: expected error notice, got %+v", path, env.Notice)
		}
	}
}

func TestCancelledJobHasNoResults(t *testing.T) {
	h := newHarness(t)
	job, err := domain.NewJob("job_cancelled", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, domain.DefaultOptions(), 2, time.Now())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	testsupport.SeedJob(t, h.store, sid, job)

	rec, env := h.do(t, http.MethodPost, "/api/progress/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if env.Navigate == nil || env.Navigate.Stage != domain.StageUpload {
		t.Fatalf("cancel: expected navigation to upload, got %+v", env.Navigate)
	}

	rec, _ = h.do(t, http.MethodGet, "/api/results", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("results for a cancelled job: expected 409, got %d", rec.Code)
	}

	rec, env = h.do(t, http.MethodGet, "/api/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session: unexpected status %d", rec.Code)
	}
	var state api.SessionResponse
	if err := env.Decode(&state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Stage != domain.StageUpload {
		t.Fatalf("expected upload stage after cancel, got %s", state.Stage)
	}
	stored, err := h.store.LoadJob(context.Background(), sid, job.ID)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if stored.Status != domain.JobProcessing || !stored.Cancelled() {
		t.Fatalf("expected processing job stamped cancelled, got %+v", stored)
	}
}

func TestChoiceValidation(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/progress/choice", api.ChoiceRequest{Choice: "maybe"})
	if rec.Code != http.StatusBadRequest || env.Notice == nil || env.Notice.Message != "Choose retry or restart." {
		t.Fatalf("unexpected response %d %+v", rec.Code, env.Notice)
	}
}

func TestFailedJobChoiceNavigates(t *testing.T) {
	h := newHarness(t)
	job, err := domain.NewJob("job_failed", []domain.FileMetadata{testsupport.Video("clip.mp4", 5)}, domain.DefaultOptions(), 2, time.Now())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	job.Status = domain.JobFailed
	job.ErrorMessage = "Processing failed"
	testsupport.SeedJob(t, h.store, sid, job)

	rec, env := h.do(t, http.MethodPost, "/api/progress/choice", api.ChoiceRequest{Choice: "retry"})
	if rec.Code != http.StatusOK || env.Navigate == nil || env.Navigate.Stage != domain.StageOptions {
		t.Fatalf("expected navigation to options, got %d %+v", rec.Code, env.Navigate)
	}
	rec, _ = h.do(t, http.MethodPost, "/api/progress/choice", api.ChoiceRequest{Choice: "restart"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("second choice should be rejected, got %d", rec.Code)
	}
}

func TestAuthRequiresBearerToken(t *testing.T) {
	h := newHarness(t, testsupport.WithAPIToken("s3cret"))

	rec, _ := h.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec, _ = h.serve(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec, _ := h.serve(t, req)
	if rec.Header().Get("X-Request-ID") != "req-123" {
		t.Fatalf("expected request id echoed, got %q", rec.Header().Get("X-Request-ID"))
	}

	rec, _ = h.do(t, http.MethodGet, "/api/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}
