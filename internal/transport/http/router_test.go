// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teamtenx/workflow-engine/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockStore struct {
	workflows map[string]*domain.Workflow
	saveErr   error
	saved     []*domain.Workflow
}

func newMockStore(workflows ...*domain.Workflow) *mockStore {
	m := &mockStore{workflows: map[string]*domain.Workflow{}}
	for _, wf := range workflows {
		m.workflows[wf.ID] = wf
	}
	return m
}

func (m *mockStore) Load(id string) (*domain.Workflow, error) {
	wf, ok := m.workflows[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return wf, nil
}

func (m *mockStore) List() ([]*domain.Workflow, error) {
	out := make([]*domain.Workflow, 0, len(m.workflows))
	for _, wf := range m.workflows {
		out = append(out, wf)
	}
	return out, nil
}

func (m *mockStore) Save(wf *domain.Workflow) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.workflows[wf.ID] = wf
	m.saved = append(m.saved, wf)
	return nil
}

type mockBuilder struct {
	built *domain.Workflow
}

func (m *mockBuilder) Build(name, description string) *domain.Workflow {
	m.built = &domain.Workflow{
		ID:          "wf_20250102030405_" + name,
		Name:        name,
		Description: description,
		Status:      domain.WorkflowDraft,
		CreatedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	return m.built
}

func TestRouter_CreateWorkflow(t *testing.T) {
	store := newMockStore()
	builder := &mockBuilder{}
	router := NewRouter(Deps{Store: store, Builder: builder, Logger: discardLogger()})

	body := bytes.NewBufferString(`{"name":"launch","description":"create an email campaign"}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["workflow_id"] != builder.built.ID {
		t.Fatalf("expected workflow_id %s got %s", builder.built.ID, resp["workflow_id"])
	}
	if resp["status"] != "draft" {
		t.Fatalf("expected status draft got %s", resp["status"])
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected workflow to be persisted")
	}
}

func TestRouter_CreateWorkflowRejectsMissingFields(t *testing.T) {
	router := NewRouter(Deps{Store: newMockStore(), Builder: &mockBuilder{}, Logger: discardLogger()})

	for _, body := range []string{``, `{"name":"x"}`, `{"name":" ","description":"y"}`} {
		req := httptest.NewRequest(http.MethodPost, "/workflows", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected status 400 got %d", body, rec.Code)
		}
	}
}

func TestRouter_CreateWorkflowSaveError(t *testing.T) {
	store := newMockStore()
	store.saveErr = errors.New("disk full")
	router := NewRouter(Deps{Store: store, Builder: &mockBuilder{}, Logger: discardLogger()})

	body := bytes.NewBufferString(`{"name":"launch","description":"desc"}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}

func TestRouter_GetWorkflow(t *testing.T) {
	wf := &domain.Workflow{ID: "wf_1", Name: "Demo", Status: domain.WorkflowDraft}
	router := NewRouter(Deps{Store: newMockStore(wf), Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf_1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var got domain.Workflow
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.ID != "wf_1" || got.Name != "Demo" {
		t.Fatalf("unexpected workflow %+v", got)
	}
}

func TestRouter_GetWorkflowNotFound(t *testing.T) {
	router := NewRouter(Deps{Store: newMockStore(), Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf_missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestRouter_ListSteps(t *testing.T) {
	wf := &domain.Workflow{
		ID:     "wf_1",
		Status: domain.WorkflowDraft,
		Steps: []domain.Step{
			{ID: 1, Name: "Execute Content Creator", Skill: "content-creator"},
			{ID: 2, Name: "Generate Outputs", Skill: "output-generation", DependsOn: []int{1}},
		},
	}
	router := NewRouter(Deps{Store: newMockStore(wf), Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/workflows/wf_1/steps", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp struct {
		WorkflowID string        `json:"workflow_id"`
		Steps      []domain.Step `json:"steps"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.WorkflowID != "wf_1" || len(resp.Steps) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRouter_SubmitAnswers(t *testing.T) {
	wf := &domain.Workflow{ID: "wf_1", Status: domain.WorkflowDraft}
	store := newMockStore(wf)
	router := NewRouter(Deps{Store: store, Builder: &mockBuilder{}, Logger: discardLogger()})

	body := bytes.NewBufferString(`{"answers":{"q1":"developers","q2":"signups"}}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf_1/answers", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !wf.UserInputs.Gathered {
		t.Fatal("expected user inputs marked gathered")
	}
	if wf.UserInputs.Answers["q1"] != "developers" {
		t.Fatalf("answers not recorded: %v", wf.UserInputs.Answers)
	}
	if len(store.saved) != 1 {
		t.Fatal("expected workflow to be persisted")
	}
}

func TestRouter_SubmitAnswersRejectsEmpty(t *testing.T) {
	wf := &domain.Workflow{ID: "wf_1", Status: domain.WorkflowDraft}
	router := NewRouter(Deps{Store: newMockStore(wf), Builder: &mockBuilder{}, Logger: discardLogger()})

	body := bytes.NewBufferString(`{"answers":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/workflows/wf_1/answers", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestRouter_ApproveWorkflow(t *testing.T) {
	wf := &domain.Workflow{ID: "wf_1", Status: domain.WorkflowDraft}
	store := newMockStore(wf)
	router := NewRouter(Deps{Store: store, Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf_1/approve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if wf.Status != domain.WorkflowApproved {
		t.Fatalf("expected status approved got %s", wf.Status)
	}
	if len(store.saved) != 1 {
		t.Fatal("expected workflow to be persisted")
	}
}

func TestRouter_ApproveWorkflowConflict(t *testing.T) {
	wf := &domain.Workflow{ID: "wf_1", Status: domain.WorkflowCompleted}
	router := NewRouter(Deps{Store: newMockStore(wf), Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodPost, "/workflows/wf_1/approve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
}

func TestRouter_ListWorkflows(t *testing.T) {
	store := newMockStore(
		&domain.Workflow{ID: "wf_1", Name: "A", Status: domain.WorkflowDraft},
		&domain.Workflow{ID: "wf_2", Name: "B", Status: domain.WorkflowCompleted,
			Execution: domain.Execution{ProgressPercent: 100}},
	)
	router := NewRouter(Deps{Store: store, Builder: &mockBuilder{}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/workflows", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp struct {
		Workflows []workflowSummary `json:"workflows"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Workflows) != 2 {
		t.Fatalf("expected 2 workflows got %d", len(resp.Workflows))
	}
}

func TestRouter_HealthAndVersion(t *testing.T) {
	router := NewRouter(Deps{Store: newMockStore(), Builder: &mockBuilder{}, Logger: discardLogger(), Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var version map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if version["version"] != "1.2.3" || version["commit"] != "none" {
		t.Fatalf("unexpected version payload %v", version)
	}
}
