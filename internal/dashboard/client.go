// SPDX-License-Identifier: Apache-2.0

// Package dashboard mirrors workflow state to the marketing dashboard
// HTTP API. Everything here is best-effort: an unreachable dashboard
// produces a structured failure result, never an error that stops the
// engine.
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/metrics"
)

const requestTimeout = 10 * time.Second

// Result is the structured outcome of a dashboard call.
type Result struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

func failure(endpoint string, err error) Result {
	metrics.IncDashboardRequest(endpoint, "error")
	return Result{Success: false, Error: err.Error()}
}

// do performs one JSON request. A transport failure comes back as a
// failed Result; non-2xx responses carry the response body as the
// error message. endpoint is the metrics label, path the URL path.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body any) Result {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return failure(endpoint, fmt.Errorf("marshal request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return failure(endpoint, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("dashboard unreachable", "endpoint", endpoint, "error", err)
		return failure(endpoint, fmt.Errorf("dashboard not available: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(endpoint, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		metrics.IncDashboardRequest(endpoint, "error")
		return Result{Success: false, Error: strings.TrimSpace(string(data))}
	}

	metrics.IncDashboardRequest(endpoint, "ok")
	return Result{Success: true, Data: data}
}

type workflowPayload struct {
	Type        string                `json:"type"`
	WorkflowID  string                `json:"workflow_id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Status      domain.WorkflowStatus `json:"status"`
	CreatedAt   time.Time             `json:"created_at"`
	Steps       []domain.Step         `json:"steps"`
	UserInputs  domain.UserInputs     `json:"user_inputs"`
	Execution   domain.Execution      `json:"execution"`
	Metadata    map[string]string     `json:"metadata"`
}

// PushWorkflow creates or refreshes the workflow record on the dashboard.
func (c *Client) PushWorkflow(ctx context.Context, wf *domain.Workflow) Result {
	return c.do(ctx, http.MethodPost, "workflows", "/api/workflows", workflowPayload{
		Type:        "workflow",
		WorkflowID:  wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Status:      wf.Status,
		CreatedAt:   wf.CreatedAt,
		Steps:       wf.Steps,
		UserInputs:  wf.UserInputs,
		Execution:   wf.Execution,
		Metadata:    map[string]string{"source": "workflow-engine"},
	})
}

func (c *Client) GetWorkflow(ctx context.Context, workflowID string) Result {
	return c.do(ctx, http.MethodGet, "workflow", "/api/workflows/"+workflowID, nil)
}

func (c *Client) ListWorkflows(ctx context.Context) Result {
	return c.do(ctx, http.MethodGet, "workflows", "/api/workflows", nil)
}

type statusPayload struct {
	Status    string         `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
	Progress  map[string]any `json:"progress,omitempty"`
}

// UpdateStatus patches the workflow status, optionally with progress data.
func (c *Client) UpdateStatus(ctx context.Context, workflowID, status string, progress map[string]any) Result {
	return c.do(ctx, http.MethodPatch, "workflow_status", "/api/workflows/"+workflowID, statusPayload{
		Status:    status,
		UpdatedAt: time.Now().UTC(),
		Progress:  progress,
	})
}

type notificationPayload struct {
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Notify posts a dashboard notification.
func (c *Client) Notify(ctx context.Context, title, message, kind string) Result {
	if kind == "" {
		kind = "info"
	}
	return c.do(ctx, http.MethodPost, "notifications", "/api/notifications", notificationPayload{
		Title:     title,
		Message:   message,
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Source:    "workflow-engine",
	})
}

type assetPayload struct {
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Path       string         `json:"path"`
	WorkflowID string         `json:"workflow_id"`
	CreatedAt  time.Time      `json:"created_at"`
	Metadata   map[string]any `json:"metadata"`
}

var assetTypes = map[string]string{
	".json": "data",
	".md":   "document",
	".pdf":  "document",
	".pptx": "presentation",
	".ppt":  "presentation",
	".png":  "image",
	".svg":  "image",
	".jpg":  "image",
	".jpeg": "image",
	".html": "web",
	".css":  "style",
	".js":   "code",
	".txt":  "text",
}

// SyncAssets registers every recognized output file of a workflow
// directory as a dashboard asset. Individual upload failures are
// skipped; the result lists what was synced.
func (c *Client) SyncAssets(ctx context.Context, workflowID, workflowDir string) Result {
	entries, err := os.ReadDir(workflowDir)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("workflow directory not found: %s", workflowID)}
	}

	synced := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		assetType, ok := assetTypes[ext]
		if !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		res := c.do(ctx, http.MethodPost, "assets", "/api/assets", assetPayload{
			Type:       assetType,
			Name:       entry.Name(),
			Path:       filepath.Join(workflowDir, entry.Name()),
			WorkflowID: workflowID,
			CreatedAt:  time.Now().UTC(),
			Metadata: map[string]any{
				"size":      info.Size(),
				"extension": ext,
			},
		})
		if res.Success {
			synced = append(synced, entry.Name())
		}
	}

	data, err := json.Marshal(map[string]any{"synced": synced})
	if err != nil {
		return Result{Success: false, Error: err.Error()}
	}
	c.logger.Info("assets synced", "workflow_id", workflowID, "count", len(synced))
	return Result{Success: true, Data: data}
}
