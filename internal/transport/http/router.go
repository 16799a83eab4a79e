// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teamtenx/workflow-engine/internal/domain"
	"github.com/teamtenx/workflow-engine/internal/metrics"
)

type createWorkflowRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type answersRequest struct {
	Answers map[string]any `json:"answers"`
}

type workflowSummary struct {
	WorkflowID      string                `json:"workflow_id"`
	Name            string                `json:"name"`
	Status          domain.WorkflowStatus `json:"status"`
	CreatedAt       string                `json:"created_at"`
	ProgressPercent int                   `json:"progress_percent"`
}

type Deps struct {
	Store     WorkflowStore
	Builder   WorkflowBuilder
	Logger    *slog.Logger
	Version   string
	Commit    string
	BuildDate string
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- CREATE WORKFLOW ----------------

	r.Post("/workflows", func(w http.ResponseWriter, r *http.Request) {
		reqBody, err := decodeCreateWorkflowRequest(r)
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		wf := deps.Builder.Build(reqBody.Name, reqBody.Description)
		if reqBody.CreatedBy != "" {
			wf.CreatedBy = reqBody.CreatedBy
		}

		if err := deps.Store.Save(wf); err != nil {
			logger.Error("create workflow failed", "error", err)
			http.Error(w, "failed to create workflow", http.StatusInternalServerError)
			return
		}

		logger.Info("workflow created via API", "workflow_id", wf.ID)

		writeJSON(w, http.StatusOK, map[string]string{
			"workflow_id": wf.ID,
			"status":      string(wf.Status),
		})
	})

	// ---------------- LIST WORKFLOWS ----------------

	r.Get("/workflows", func(w http.ResponseWriter, r *http.Request) {
		workflows, err := deps.Store.List()
		if err != nil {
			logger.Error("list workflows failed", "error", err)
			http.Error(w, "failed to list workflows", http.StatusInternalServerError)
			return
		}

		summaries := make([]workflowSummary, 0, len(workflows))
		for _, wf := range workflows {
			summaries = append(summaries, workflowSummary{
				WorkflowID:      wf.ID,
				Name:            wf.Name,
				Status:          wf.Status,
				CreatedAt:       wf.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
				ProgressPercent: wf.Execution.ProgressPercent,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"workflows": summaries,
		})
	})

	// ---------------- GET WORKFLOW ----------------

	r.Get("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, deps.Store, logger, chi.URLParam(r, "id"))
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, wf)
	})

	// ---------------- LIST STEPS ----------------

	r.Get("/workflows/{id}/steps", func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, deps.Store, logger, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		writeJSON(w, http.StatusOK, struct {
			WorkflowID string        `json:"workflow_id"`
			Steps      []domain.Step `json:"steps"`
		}{
			WorkflowID: wf.ID,
			Steps:      wf.Steps,
		})
	})

	// ---------------- SUBMIT ANSWERS ----------------

	r.Post("/workflows/{id}/answers", func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, deps.Store, logger, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		var reqBody answersRequest
		if err := decodeJSONBody(r, &reqBody); err != nil || len(reqBody.Answers) == 0 {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		wf.UserInputs.Answers = reqBody.Answers
		wf.UserInputs.Gathered = true
		if err := deps.Store.Save(wf); err != nil {
			logger.Error("save answers failed", "workflow_id", wf.ID, "error", err)
			http.Error(w, "failed to save answers", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"workflow_id": wf.ID,
			"gathered":    true,
		})
	})

	// ---------------- APPROVE WORKFLOW ----------------

	// Manual approval path for setups without a canvas.
	r.Post("/workflows/{id}/approve", func(w http.ResponseWriter, r *http.Request) {
		wf, ok := loadWorkflow(w, deps.Store, logger, chi.URLParam(r, "id"))
		if !ok {
			return
		}

		if wf.Status != domain.WorkflowDraft {
			http.Error(w, "workflow is not in draft", http.StatusConflict)
			return
		}

		wf.Status = domain.WorkflowApproved
		if err := deps.Store.Save(wf); err != nil {
			logger.Error("approve workflow failed", "workflow_id", wf.ID, "error", err)
			http.Error(w, "failed to approve workflow", http.StatusInternalServerError)
			return
		}

		logger.Info("workflow approved via API", "workflow_id", wf.ID)

		writeJSON(w, http.StatusOK, map[string]string{
			"workflow_id": wf.ID,
			"status":      string(domain.WorkflowApproved),
		})
	})

	return r
}

func loadWorkflow(w http.ResponseWriter, store WorkflowStore, logger *slog.Logger, id string) (*domain.Workflow, bool) {
	wf, err := store.Load(id)
	if err != nil {
		if errors.Is(err, domain.ErrWorkflowNotFound) {
			logger.Warn("workflow not found", "workflow_id", id)
			http.Error(w, "workflow not found", http.StatusNotFound)
			return nil, false
		}
		logger.Error("load workflow failed", "workflow_id", id, "error", err)
		http.Error(w, "failed to load workflow", http.StatusInternalServerError)
		return nil, false
	}
	return wf, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONBody(r *http.Request, dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return errors.New("empty request body")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}

	// Ensure there is only one JSON object.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

func decodeCreateWorkflowRequest(r *http.Request) (createWorkflowRequest, error) {
	var req createWorkflowRequest
	if err := decodeJSONBody(r, &req); err != nil {
		return createWorkflowRequest{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || req.Description == "" {
		return createWorkflowRequest{}, errors.New("name and description are required")
	}

	return req, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
