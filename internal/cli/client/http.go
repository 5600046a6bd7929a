package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/pagination"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// defaultTimeout stays above the server's query timeout so the server
// reports TIMEOUT before the client gives up
const defaultTimeout = 90 * time.Second

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClientWithCmd creates an APIClient with the URL cascade: flag → env → config file → default
// If cmd is nil, skips flag checking
func NewAPIClientWithCmd(cmd *cobra.Command) (*APIClient, error) {
	_ = godotenv.Load()

	var flagURL string
	if cmd != nil {
		flagURL, _ = cmd.Flags().GetString("api-url")
	}

	_, baseURL, err := ResolveAPIURL(flagURL)
	if err != nil {
		return nil, err
	}

	return NewAPIClientWithConfig(baseURL), nil
}

// NewAPIClientWithConfig creates an APIClient with an explicit base URL.
func NewAPIClientWithConfig(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// BaseURL returns the server the client talks to
func (c *APIClient) BaseURL() string {
	return c.baseURL
}

// APIResponse represents the standard API response envelope.
type APIResponse struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// APIError represents an error from the API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error (%d %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Ask posts a question. An empty session id lets the server create one.
func (c *APIClient) Ask(ctx context.Context, sessionID, question string) (*domain.AnswerResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/ask", map[string]string{
		"sessionId": sessionID,
		"question":  question,
	})
	if err != nil {
		return nil, err
	}

	var result domain.AnswerResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse answer: %w", err)
	}
	return &result, nil
}

// HistoryResult is the body of GET /sessions/{id}/history
type HistoryResult struct {
	SessionID string                     `json:"sessionId"`
	Turns     domain.ConversationHistory `json:"turns"`
}

func (c *APIClient) History(ctx context.Context, sessionID string) (*HistoryResult, error) {
	var out HistoryResult
	if err := c.getData(ctx, "/sessions/"+url.PathEscape(sessionID)+"/history", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Forget(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil)
	return err
}

// HealthResult is the body of GET /health
type HealthResult struct {
	Status    string `json:"status"`
	Entries   int    `json:"entries"`
	Documents int    `json:"documents"`
}

func (c *APIClient) Health(ctx context.Context) (*HealthResult, error) {
	var out HealthResult
	if err := c.getData(ctx, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Documents(ctx context.Context, cursor string, limit int) (*pagination.PageResult[domain.DocumentSummary], error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/documents"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out pagination.PageResult[domain.DocumentSummary]
	if err := c.getData(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest queues an ingest job and returns it
func (c *APIClient) Ingest(ctx context.Context, rebuild bool, document string) (*domain.IngestJob, error) {
	body, err := c.do(ctx, http.MethodPost, "/ingest", map[string]interface{}{
		"rebuild":  rebuild,
		"document": document,
	})
	if err != nil {
		return nil, err
	}
	return decodeJob(body)
}

func (c *APIClient) IngestStatus(ctx context.Context, jobID string) (*domain.IngestJob, error) {
	var job domain.IngestJob
	if err := c.getData(ctx, "/ingest/"+url.PathEscape(jobID), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func decodeJob(body []byte) (*domain.IngestJob, error) {
	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	var job domain.IngestJob
	if err := json.Unmarshal(resp.Data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return &job, nil
}

func (c *APIClient) getData(ctx context.Context, path string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	var resp APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// do sends one request and returns the raw body of a successful response.
func (c *APIClient) do(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(respBody, &errResp); err != nil || errResp.Error == "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(respBody))}
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	return respBody, nil
}
