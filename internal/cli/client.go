package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// Problem — задача о рюкзаке.
type Problem struct {
	Capacity uint32   `json:"capacity"`
	Weights  []uint32 `json:"weights"`
	Values   []uint32 `json:"values"`
}

// Timestamps — моменты смены статуса, unix-время в секундах.
type Timestamps struct {
	Submitted int64  `json:"submitted"`
	Started   *int64 `json:"started,omitempty"`
	Completed *int64 `json:"completed,omitempty"`
	Failed    *int64 `json:"failed,omitempty"`
}

// Solution — решение из API.
type Solution struct {
	PackedItems []uint32 `json:"packed_items"`
	TotalValue  uint64   `json:"total_value"`
}

// TaskResponse — task из API.
type TaskResponse struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Timestamps Timestamps `json:"timestamps"`
	Problem    Problem    `json:"problem"`
	Solution   *Solution  `json:"solution,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// IsFinished возвращает true для completed и failed.
func (t *TaskResponse) IsFinished() bool {
	return t.Status == "completed" || t.Status == "failed"
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError — ошибка, возвращённая API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrWaitTimeout — task не завершился за отведённое время.
var ErrWaitTimeout = errors.New("timed out waiting for task")

// --- Client ---

// Client — HTTP-клиент для knapsack API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Submit отправляет задачу и возвращает созданный task.
func (c *Client) Submit(ctx context.Context, p Problem) (*TaskResponse, error) {
	var task TaskResponse
	err := c.doJSON(ctx, http.MethodPost, "/knapsack", p, &task)
	return &task, err
}

// GetTask возвращает task по ID.
func (c *Client) GetTask(ctx context.Context, id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.doJSON(ctx, http.MethodGet, "/knapsack/"+url.PathEscape(id), nil, &task)
	return &task, err
}

// Wait опрашивает task с интервалом interval, пока он не перейдёт
// в completed или failed. timeout <= 0 — ждать, пока не отменят ctx.
func (c *Client) Wait(ctx context.Context, id string, interval, timeout time.Duration) (*TaskResponse, error) {
	if interval <= 0 {
		interval = time.Second
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := c.GetTask(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w %s", ErrWaitTimeout, id)
			}
			return nil, err
		}
		if task.IsFinished() {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return task, fmt.Errorf("%w %s (last status %s)", ErrWaitTimeout, id, task.Status)
		case <-ticker.C:
		}
	}
}

// --- HTTP helpers ---

func (c *Client) doJSON(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}
	return apiErr
}
