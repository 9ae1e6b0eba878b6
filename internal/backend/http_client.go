package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"minimill/internal/domain"
	"minimill/internal/logging"
	"minimill/internal/services"
)

// HTTPClient talks to an external processing backend over HTTP.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient builds a client for baseURL. The timeout applies to the JSON
// endpoints; downloads are bounded only by the caller's context.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logging.NewComponentLogger(logger, "backend"),
	}
}

func (c *HTTPClient) Name() string { return "http" }

type submitResponse struct {
	JobID string `json:"jobId"`
	ID    string `json:"id"`
}

// Submit posts the files and options as multipart form data. Files with a
// local path are streamed from disk; others are sent as empty parts named
// after the file.
func (c *HTTPClient) Submit(ctx context.Context, files []domain.FileMetadata, opts domain.ProcessingOptions) (Submission, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(writer, files, opts))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return Submission{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	// Uploads can be large; rely on ctx instead of the JSON timeout.
	client := *c.http
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		pr.Close()
		return Submission{}, c.transportError("upload", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("Upload", resp); err != nil {
		return Submission{}, err
	}

	var payload submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Submission{}, services.Wrap(services.ErrExternal, "backend", "upload", "decode job descriptor", err)
	}
	id := strings.TrimSpace(payload.JobID)
	if id == "" {
		id = strings.TrimSpace(payload.ID)
	}
	c.logger.Info("job submitted", logging.String(logging.FieldJobID, id), logging.Int("files", len(files)))
	return Submission{JobID: id}, nil
}

func writeUploadForm(writer *multipart.Writer, files []domain.FileMetadata, opts domain.ProcessingOptions) error {
	for i, file := range files {
		part, err := writer.CreateFormFile("file_"+strconv.Itoa(i), file.Name)
		if err != nil {
			return err
		}
		if file.Path == "" {
			continue
		}
		if err := copyFile(part, file.Path); err != nil {
			return err
		}
	}
	fields := [][2]string{
		{"detectionMode", string(opts.DetectionMode)},
		{"highQuality", strconv.FormatBool(opts.HighQuality)},
		{"emailNotification", strconv.FormatBool(opts.EmailNotification)},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	return writer.Close()
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	_, err = io.Copy(dst, f)
	return err
}

// Status fetches GET /status/{id}.
func (c *HTTPClient) Status(ctx context.Context, job domain.Job) (StatusReport, error) {
	var raw struct {
		Status   string   `json:"status"`
		Progress *float64 `json:"progress"`
		Error    string   `json:"error"`
	}
	if err := c.getJSON(ctx, "Status check", "/status/"+url.PathEscape(job.ID), &raw); err != nil {
		return StatusReport{}, err
	}
	status, err := domain.ParseJobStatus(raw.Status)
	if err != nil {
		return StatusReport{}, services.Wrap(services.ErrExternal, "backend", "status", "", err)
	}
	return StatusReport{Status: status, Progress: raw.Progress, Error: raw.Error}, nil
}

// Results fetches GET /results/{id}.
func (c *HTTPClient) Results(ctx context.Context, job domain.Job) (domain.Results, error) {
	var results domain.Results
	if err := c.getJSON(ctx, "Results fetch", "/results/"+url.PathEscape(job.ID), &results); err != nil {
		return domain.Results{}, err
	}
	return results, nil
}

// Download streams GET /download/{id}?quality=. The caller closes Body.
func (c *HTTPClient) Download(ctx context.Context, job domain.Job, quality domain.Quality) (*Media, error) {
	endpoint := c.baseURL + "/download/" + url.PathEscape(job.ID) + "?" + url.Values{"quality": {string(quality)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	client := *c.http
	client.Timeout = 0
	resp, err := client.Do(req)
	if err != nil {
		return nil, c.transportError("download", err)
	}
	if err := checkStatus("Download", resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	modTime, _ := http.ParseTime(resp.Header.Get("Last-Modified"))
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	return &Media{
		Body:        resp.Body,
		ContentType: contentType,
		Size:        resp.ContentLength,
		ModTime:     modTime,
	}, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, op, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(strings.ToLower(op), err)
	}
	defer resp.Body.Close()
	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return services.Wrap(services.ErrExternal, "backend", strings.ToLower(op), "decode response", err)
	}
	return nil
}

func (c *HTTPClient) transportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	logging.WarnWithContext(c.logger, "backend request failed", "backend_unreachable",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check backend.base_url and that the backend is running"),
		logging.String(logging.FieldImpact, "the current action is aborted"),
	)
	return services.Wrap(services.ErrTransient, "backend", op, "request failed", err)
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return e.Op + " failed: " + http.StatusText(e.Code)
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %w", services.ErrExternal, &StatusError{Op: op, Code: resp.StatusCode})
}
