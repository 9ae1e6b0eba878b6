package apiclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"minimill/internal/api"
	"minimill/internal/apiclient"
	"minimill/internal/domain"
	"minimill/internal/upload"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data any, notice *domain.Notice, nav *domain.Navigation) {
	t.Helper()
	env := api.Envelope{Notice: notice, Navigate: nav}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		env.Data = raw
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func TestClientSendsSessionAndToken(t *testing.T) {
	var gotSession, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("X-Session-ID")
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/session" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeEnvelope(t, w, http.StatusOK, api.SessionResponse{SessionID: gotSession, Stage: domain.StageUpload}, nil, nil)
	}))
	defer srv.Close()

	client, err := apiclient.New(srv.URL, "tok", "cli-1")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess, err := client.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if gotSession != "cli-1" || gotAuth != "Bearer tok" || sess.SessionID != "cli-1" {
		t.Fatalf("unexpected request headers session=%q auth=%q resp=%+v", gotSession, gotAuth, sess)
	}
}

func TestClientAddFilesReturnsNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.AddFilesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Source != "drop" || len(req.Files) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		res := upload.Result{Rejected: []upload.Rejection{{Name: "a.pdf", Message: "a.pdf: Unsupported file type."}}}
		writeEnvelope(t, w, http.StatusOK, res, &domain.Notice{Type: domain.NoticeError, Message: "a.pdf: Unsupported file type."}, nil)
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "", "s")
	res, resp, err := client.AddFiles(context.Background(), upload.SourceDrop, []domain.FileMetadata{{Name: "a.pdf"}})
	if err != nil {
		t.Fatalf("AddFiles: %v", err)
	}
	if len(res.Rejected) != 1 || resp.Notice == nil || resp.Notice.Type != domain.NoticeError {
		t.Fatalf("unexpected result %+v %+v", res, resp)
	}
}

func TestClientErrorCarriesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusConflict, nil,
			&domain.Notice{Type: domain.NoticeError, Message: "No results found. Please process a video first."},
			&domain.Navigation{Stage: domain.StageUpload, DelayMS: 2000},
		)
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "", "s")
	_, err := client.Results(context.Background())
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected api error, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Navigate == nil || apiErr.Navigate.Stage != domain.StageUpload {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if err.Error() != "No results found. Please process a video first." {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestClientDownloadStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("quality") != "standard" {
			t.Errorf("unexpected quality %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="processed_video_job_1.mp4"`)
		w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	client, _ := apiclient.New(srv.URL, "", "s")
	body, name, err := client.Download(context.Background(), domain.QualityStandard)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "video-bytes" || name != "processed_video_job_1.mp4" {
		t.Fatalf("unexpected download %q %q", data, name)
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	var client *apiclient.Client
	_, err := client.Health(context.Background())
	if !apiclient.IsAPIUnavailable(err) {
		t.Fatalf("nil client should be unavailable, got %v", err)
	}

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	client, _ = apiclient.New(addr, "", "s")
	if _, err := client.Health(context.Background()); !apiclient.IsAPIUnavailable(err) {
		t.Fatalf("closed server should be unavailable, got %v", err)
	}
	if apiclient.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("plain error should not count as unavailable")
	}
}
