// Package runner talks to the external analysis runner over HTTP. It covers
// the three calls the coordinator needs: submitting a job, asking for its
// current state, and fetching the finished artifact.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

const (
	// maxErrorBodyBytes bounds how much of an error response we keep for
	// the error message.
	maxErrorBodyBytes = 4 * 1024

	// maxArtifactBytes bounds how much artifact payload a single fetch may
	// bring back.
	maxArtifactBytes = 4 * 1024 * 1024
)

// ErrJobNotFound reports an external job id the runner does not know.
var ErrJobNotFound = errors.New("analysis job not found")

// ClientOptions configures a runner Client.
type ClientOptions struct {
	BaseURL    string        // Required: runner API base, no trailing slash
	APIToken   string        // Optional: bearer token for runner auth
	Timeout    time.Duration // Optional: per-request timeout, defaults to 30s
	HTTPClient *http.Client  // Optional: override for tests
	Logger     *slog.Logger  // Optional: structured logger
}

// Client implements core.AnalysisRunner against the runner's REST API.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
	logger   *slog.Logger
}

var _ core.AnalysisRunner = (*Client)(nil)

// NewClient builds a runner client. Callers should pass a validated config.
func NewClient(opts ClientOptions) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("runner base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("runner base URL: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:  baseURL,
		apiToken: opts.APIToken,
		client:   hc,
		logger:   logger.With("component", "runner_client"),
	}, nil
}

type triggerRequest struct {
	WorkItemID     string          `json:"work_item_id"`
	JobSpec        json.RawMessage `json:"job_spec"`
	CallbackURL    string          `json:"callback_url,omitempty"`
	CallbackSecret string          `json:"callback_secret,omitempty"`
}

type triggerResponse struct {
	JobID string `json:"job_id"`
}

// Trigger submits a new analysis job and returns the runner's job id. The
// callback URL and secret are only forwarded when a callback URL is
// configured; without one the runner never calls back and the item settles
// through polling.
func (c *Client) Trigger(ctx context.Context, params core.TriggerJobParams) (string, error) {
	reqBody := triggerRequest{
		WorkItemID: params.WorkItemID,
		JobSpec:    params.JobSpec,
	}
	if params.CallbackURL != "" {
		reqBody.CallbackURL = params.CallbackURL
		reqBody.CallbackSecret = params.Secret
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode trigger request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/v1/analyses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.errorFromResponse("trigger analysis", resp)
	}

	var parsed triggerResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&parsed); decodeErr != nil {
		return "", fmt.Errorf("decode trigger response: %w", decodeErr)
	}
	if parsed.JobID == "" {
		return "", errors.New("runner returned empty job id")
	}

	c.logger.DebugContext(ctx, "analysis job submitted",
		"work_item_id", params.WorkItemID,
		"external_job_id", parsed.JobID,
	)
	return parsed.JobID, nil
}

type statusResponse struct {
	Status string `json:"status"`
}

// GetStatus returns the runner's view of a job.
func (c *Client) GetStatus(ctx context.Context, externalJobID string) (model.RunnerJobStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(externalJobID)+"/status", nil)
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrJobNotFound, externalJobID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.errorFromResponse("job status", resp)
	}

	var parsed statusResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&parsed); decodeErr != nil {
		return "", fmt.Errorf("decode status response: %w", decodeErr)
	}

	status := model.RunnerJobStatus(parsed.Status)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", model.ErrUnknownRunnerStatus, parsed.Status)
	}
	return status, nil
}

// FetchArtifact downloads the result payload of a completed job.
func (c *Client) FetchArtifact(ctx context.Context, externalJobID string) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/analyses/"+url.PathEscape(externalJobID)+"/artifact", nil)
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, externalJobID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.errorFromResponse("fetch artifact", resp)
	}

	limited := io.LimitReader(resp.Body, maxArtifactBytes+1)
	data, readErr := io.ReadAll(limited)
	if readErr != nil {
		return nil, fmt.Errorf("read artifact: %w", readErr)
	}
	if len(data) > maxArtifactBytes {
		return nil, fmt.Errorf("artifact for job %s exceeds %d bytes", externalJobID, maxArtifactBytes)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("artifact for job %s is not valid JSON", externalJobID)
	}
	return json.RawMessage(data), nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create runner request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("runner request failed: %w", err)
	}
	return resp, nil
}

func (c *Client) errorFromResponse(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	trimmed := strings.TrimSpace(string(snippet))
	if trimmed == "" {
		return fmt.Errorf("%s: runner returned status %d", op, resp.StatusCode)
	}
	return fmt.Errorf("%s: runner returned status %d: %s", op, resp.StatusCode, trimmed)
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
}
