package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"minimill/internal/api"
	"minimill/internal/domain"
	"minimill/internal/options"
	"minimill/internal/progress"
	"minimill/internal/results"
	"minimill/internal/upload"
)

// ErrAPIUnavailable is returned when no daemon address is configured.
var ErrAPIUnavailable = errors.New("minimill API unavailable")

const (
	sessionHeader  = "X-Session-ID"
	requestTimeout = 30 * time.Second
)

// Error is a non-2xx answer from the daemon. Notice and Navigate carry the
// envelope fields the server attached.
type Error struct {
	Status   int
	Notice   *domain.Notice
	Navigate *domain.Navigation
}

func (e *Error) Error() string {
	if e.Notice != nil && e.Notice.Message != "" {
		return e.Notice.Message
	}
	return fmt.Sprintf("minimill api returned status %d", e.Status)
}

// Response is the envelope metadata of a successful call.
type Response struct {
	Notice   *domain.Notice
	Navigate *domain.Navigation
}

// Client talks to a running minimill daemon on behalf of one session.
type Client struct {
	base      *url.URL
	token     string
	sessionID string
	http      *http.Client
}

// New builds a client for the daemon bound at bind. An empty bind yields a
// nil client whose calls fail with ErrAPIUnavailable.
func New(bind, token, sessionID string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:      base,
		token:     strings.TrimSpace(token),
		sessionID: strings.TrimSpace(sessionID),
		http:      &http.Client{Timeout: requestTimeout},
	}, nil
}

// SessionID returns the session the client acts for.
func (c *Client) SessionID() string {
	if c == nil {
		return ""
	}
	return c.sessionID
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	_, err := c.call(ctx, http.MethodGet, "/api/health", nil, nil, &out)
	return out, err
}

func (c *Client) Session(ctx context.Context) (api.SessionResponse, error) {
	var out api.SessionResponse
	_, err := c.call(ctx, http.MethodGet, "/api/session", nil, nil, &out)
	return out, err
}

// ProcessAnother clears the session selection and options.
func (c *Client) ProcessAnother(ctx context.Context) (Response, error) {
	return c.call(ctx, http.MethodDelete, "/api/session", nil, nil, nil)
}

func (c *Client) Jobs(ctx context.Context) ([]domain.Job, error) {
	var out api.JobsResponse
	_, err := c.call(ctx, http.MethodGet, "/api/jobs", nil, nil, &out)
	return out.Jobs, err
}

func (c *Client) Files(ctx context.Context) (upload.Result, error) {
	var out upload.Result
	_, err := c.call(ctx, http.MethodGet, "/api/upload/files", nil, nil, &out)
	return out, err
}

// AddFiles submits file metadata. Rejections come back in the result and as
// an error notice.
func (c *Client) AddFiles(ctx context.Context, source upload.Source, files []domain.FileMetadata) (upload.Result, Response, error) {
	var out upload.Result
	resp, err := c.call(ctx, http.MethodPost, "/api/upload/files", nil, api.AddFilesRequest{Source: string(source), Files: files}, &out)
	return out, resp, err
}

func (c *Client) RemoveFile(ctx context.Context, index int) (upload.Result, error) {
	var out upload.Result
	_, err := c.call(ctx, http.MethodDelete, "/api/upload/files/"+strconv.Itoa(index), nil, nil, &out)
	return out, err
}

func (c *Client) ClearFiles(ctx context.Context) (upload.Result, error) {
	var out upload.Result
	_, err := c.call(ctx, http.MethodDelete, "/api/upload/files", nil, nil, &out)
	return out, err
}

func (c *Client) Proceed(ctx context.Context) (Response, error) {
	return c.call(ctx, http.MethodPost, "/api/upload/proceed", nil, nil, nil)
}

func (c *Client) Options(ctx context.Context) (options.Summary, error) {
	var out options.Summary
	_, err := c.call(ctx, http.MethodGet, "/api/options", nil, nil, &out)
	return out, err
}

func (c *Client) UpdateOptions(ctx context.Context, patch domain.OptionsPatch) (options.Summary, error) {
	var out options.Summary
	_, err := c.call(ctx, http.MethodPatch, "/api/options", nil, patch, &out)
	return out, err
}

func (c *Client) ResetOptions(ctx context.Context) (options.Summary, error) {
	var out options.Summary
	_, err := c.call(ctx, http.MethodPost, "/api/options/reset", nil, nil, &out)
	return out, err
}

func (c *Client) RemoveOptionFile(ctx context.Context, index int) (options.Summary, error) {
	var out options.Summary
	_, err := c.call(ctx, http.MethodDelete, "/api/options/files/"+strconv.Itoa(index), nil, nil, &out)
	return out, err
}

func (c *Client) Start(ctx context.Context) (options.StartResult, Response, error) {
	var out options.StartResult
	resp, err := c.call(ctx, http.MethodPost, "/api/options/start", nil, nil, &out)
	return out, resp, err
}

func (c *Client) Progress(ctx context.Context) (progress.Snapshot, Response, error) {
	var out progress.Snapshot
	resp, err := c.call(ctx, http.MethodGet, "/api/progress", nil, nil, &out)
	return out, resp, err
}

func (c *Client) Events(ctx context.Context, since int64) (api.EventsResponse, error) {
	var out api.EventsResponse
	values := url.Values{}
	if since > 0 {
		values.Set("since", strconv.FormatInt(since, 10))
	}
	_, err := c.call(ctx, http.MethodGet, "/api/progress/events", values, nil, &out)
	return out, err
}

func (c *Client) Cancel(ctx context.Context) (progress.Snapshot, Response, error) {
	var out progress.Snapshot
	resp, err := c.call(ctx, http.MethodPost, "/api/progress/cancel", nil, nil, &out)
	return out, resp, err
}

func (c *Client) Choose(ctx context.Context, choice string) (Response, error) {
	return c.call(ctx, http.MethodPost, "/api/progress/choice", nil, api.ChoiceRequest{Choice: choice}, nil)
}

func (c *Client) Results(ctx context.Context) (results.View, error) {
	var out results.View
	_, err := c.call(ctx, http.MethodGet, "/api/results", nil, nil, &out)
	return out, err
}

func (c *Client) Details(ctx context.Context) ([]results.Detail, error) {
	var out []results.Detail
	_, err := c.call(ctx, http.MethodGet, "/api/results/details", nil, nil, &out)
	return out, err
}

func (c *Client) Share(ctx context.Context) (domain.ShareInfo, error) {
	var out domain.ShareInfo
	_, err := c.call(ctx, http.MethodGet, "/api/results/share", nil, nil, &out)
	return out, err
}

// Download streams the processed video. The caller closes the body.
func (c *Client) Download(ctx context.Context, quality domain.Quality) (io.ReadCloser, string, error) {
	values := url.Values{}
	if quality != "" {
		values.Set("quality", string(quality))
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/api/results/download", values, nil)
	if err != nil {
		return nil, "", err
	}
	// Large files must not hit the request timeout.
	httpClient := *c.http
	httpClient.Timeout = 0
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, "", decodeError(resp)
	}
	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	return resp.Body, filename, nil
}

func (c *Client) call(ctx context.Context, method, path string, query url.Values, body any, dst any) (Response, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return Response{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Response{}, decodeError(resp)
	}
	var env api.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Response{}, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if err := env.Decode(dst); err != nil {
		return Response{}, fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return Response{Notice: env.Notice, Navigate: env.Navigate}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	if c == nil {
		return nil, ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionID != "" {
		req.Header.Set(sessionHeader, c.sessionID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	var env api.Envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err == nil {
		apiErr.Notice = env.Notice
		apiErr.Navigate = env.Navigate
	}
	return apiErr
}

// IsAPIUnavailable reports whether err means the daemon could not be reached.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
