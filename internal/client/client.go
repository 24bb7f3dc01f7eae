package client

import (
	"bytes"
	"catalogboost/internal/application/dto"
	domainerrors "catalogboost/internal/domain/errors/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// userAgent is the User-Agent header value sent with all API requests.
	userAgent = "catalogboost-client/1.0"

	// contentTypeJSON is the Content-Type header value for JSON requests.
	contentTypeJSON = "application/json"

	// API endpoint paths.
	pathJobs    = "/ai/batch/jobs"
	pathBalance = "/ai/balance"
)

// Client provides typed access to the remote enhancement job API. It
// handles authentication, request serialization, and response parsing.
// It performs no transport retries: retry policy lives with the caller
// and only for the domain-level failed-item case.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a new API client with the given configuration.
// Returns an error if the configuration is nil or invalid.
func NewClient(config *Config) (*Client, error) {
	return NewClientWithHTTPClient(config, nil)
}

// NewClientWithHTTPClient creates a new API client with the given
// configuration and HTTP client. If httpClient is nil, a default client
// with the configured timeout is used for synchronous calls. Streaming
// calls always use a client without an overall timeout, since an SSE
// response body outlives any fixed request deadline.
func NewClientWithHTTPClient(config *Config, httpClient *http.Client) (*Client, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		baseURL:      config.APIURL,
		apiKey:       config.APIKey,
		httpClient:   httpClient,
		streamClient: &http.Client{},
	}, nil
}

// newRequest builds a request with the standard headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// doRequest performs a synchronous JSON request. If body is non-nil it is
// JSON-encoded; if result is non-nil the response body is decoded into
// it. Non-2xx responses and malformed JSON map to RemoteError.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return remoteErrorFromResponse(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return domainerrors.NewRemoteError(resp.StatusCode, fmt.Sprintf("malformed response body: %v", err))
		}
	}
	return nil
}

// doStream performs a request whose response is a live SSE stream and
// returns the response body for the caller to consume and close.
func (c *Client) doStream(ctx context.Context, path string, body interface{}) (io.ReadCloser, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, remoteErrorFromResponse(resp)
	}
	return resp.Body, nil
}

// remoteErrorFromResponse maps a non-2xx response to a RemoteError,
// using the server's message field when the body carries one.
func remoteErrorFromResponse(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Message != "" {
			return domainerrors.NewRemoteError(resp.StatusCode, payload.Message)
		}
		if payload.Error != "" {
			return domainerrors.NewRemoteError(resp.StatusCode, payload.Error)
		}
	}
	return domainerrors.NewRemoteError(resp.StatusCode, http.StatusText(resp.StatusCode))
}

// CreateJob creates a new batch enhancement job.
func (c *Client) CreateJob(ctx context.Context, req dto.CreateJobRequest) (*dto.CreateJobResponse, error) {
	var result dto.CreateJobResponse
	if err := c.doRequest(ctx, http.MethodPost, pathJobs, req, &result); err != nil {
		return nil, err
	}
	if result.Job.ID == "" {
		return nil, domainerrors.NewRemoteError(0, "job creation response missing job id")
	}
	return &result, nil
}

// GetJob reads the server-side state of a job by id. The server remains
// authoritative and resumable by job id.
func (c *Client) GetJob(ctx context.Context, jobID string) (*dto.GetJobResponse, error) {
	var result dto.GetJobResponse
	path := fmt.Sprintf("%s/%s", pathJobs, jobID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Preview starts a preview pass and returns the live event stream.
func (c *Client) Preview(ctx context.Context, jobID string, req dto.PreviewRequest) (io.ReadCloser, error) {
	return c.doStream(ctx, fmt.Sprintf("%s/%s/preview", pathJobs, jobID), req)
}

// Refine reruns preview with additional user feedback and returns the
// live event stream.
func (c *Client) Refine(ctx context.Context, jobID string, req dto.RefineRequest) (io.ReadCloser, error) {
	return c.doStream(ctx, fmt.Sprintf("%s/%s/refine", pathJobs, jobID), req)
}

// Approve approves the previewed suggestions for processing.
func (c *Client) Approve(ctx context.Context, jobID string) error {
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/approve", pathJobs, jobID), nil, nil)
}

// ProcessChunk processes one chunk of product ids.
func (c *Client) ProcessChunk(
	ctx context.Context,
	jobID string,
	req dto.ProcessChunkRequest,
) (*dto.ProcessChunkResponse, error) {
	var result dto.ProcessChunkResponse
	path := fmt.Sprintf("%s/%s/process", pathJobs, jobID)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PauseJob acknowledges a pause on the server side.
func (c *Client) PauseJob(ctx context.Context, jobID string) error {
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/pause", pathJobs, jobID), nil, nil)
}

// ResumeJob acknowledges a resume on the server side.
func (c *Client) ResumeJob(ctx context.Context, jobID string) error {
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/resume", pathJobs, jobID), nil, nil)
}

// CancelJob cancels the job on the server side.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/%s/cancel", pathJobs, jobID), nil, nil)
}

// RetryFailed resubmits the failed subset as full product payloads.
func (c *Client) RetryFailed(
	ctx context.Context,
	jobID string,
	req dto.RetryFailedRequest,
) (*dto.RetryFailedResponse, error) {
	var result dto.RetryFailedResponse
	path := fmt.Sprintf("%s/%s/retry-failed", pathJobs, jobID)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AttachFile uploads one reference file as multipart form data. The MIME
// type is sniffed from the content rather than trusted from the filename.
func (c *Client) AttachFile(
	ctx context.Context,
	jobID, filename string,
	content []byte,
) (*dto.AttachFileResponse, error) {
	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}
	if len(content) == 0 {
		return nil, errors.New("attachment content cannot be empty")
	}

	detected := mimetype.Detect(content)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write attachment content: %w", err)
	}
	if err := writer.WriteField("mime_type", detected.String()); err != nil {
		return nil, fmt.Errorf("failed to write mime field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	path := fmt.Sprintf("%s/%s/attachments", pathJobs, jobID)
	req, err := c.newRequest(ctx, http.MethodPost, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remoteErrorFromResponse(resp)
	}

	var result dto.AttachFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, domainerrors.NewRemoteError(resp.StatusCode, fmt.Sprintf("malformed response body: %v", err))
	}
	return &result, nil
}

// Balance re-fetches the authoritative token balance. Used instead of
// guessing after a missed balance_update event.
func (c *Client) Balance(ctx context.Context) (*dto.BalanceResponse, error) {
	var result dto.BalanceResponse
	if err := c.doRequest(ctx, http.MethodGet, pathBalance, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
