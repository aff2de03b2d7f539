package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
	"github.com/matzehuels/ercanvas/pkg/storage"
	"github.com/matzehuels/ercanvas/pkg/tutor"
)

// fakeTutor returns canned answers and counts calls.
type fakeTutor struct {
	calls atomic.Int32
	err   error
}

func (f *fakeTutor) GenerateScenario(_ context.Context, d tutor.Difficulty) (string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return "", f.err
	}
	return "A " + string(d) + " clinic books appointments.", nil
}

func (f *fakeTutor) EvaluateModel(_ context.Context, m diagram.Model) (tutor.Evaluation, error) {
	f.calls.Add(1)
	if f.err != nil {
		return tutor.Evaluation{}, f.err
	}
	return tutor.Evaluation{Score: 10 * len(m.Entities), Feedback: "ok"}, nil
}

func (f *fakeTutor) GenerateSQL(_ context.Context, _ diagram.Model, d tutor.Dialect) (string, error) {
	f.calls.Add(1)
	return "-- " + d.DisplayName(), f.err
}

func (f *fakeTutor) GuidedHint(context.Context, diagram.Model) (string, error) {
	f.calls.Add(1)
	return "add a key", f.err
}

type harness struct {
	t       *testing.T
	srv     *httptest.Server
	storage *storage.MemoryStore
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	st := storage.NewMemoryStore()
	s := New(append([]Option{WithStorage(st)}, opts...)...)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, storage: st}
}

func (h *harness) do(method, path string, body any) (*http.Response, []byte) {
	h.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			h.t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		h.t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		h.t.Fatal(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatal(err)
	}
	return resp, data
}

func (h *harness) decode(method, path string, body any, want int, v any) {
	h.t.Helper()
	resp, data := h.do(method, path, body)
	if resp.StatusCode != want {
		h.t.Fatalf("%s %s = %d, want %d: %s", method, path, resp.StatusCode, want, data)
	}
	if v != nil {
		if err := json.Unmarshal(data, v); err != nil {
			h.t.Fatalf("decode %s: %v", data, err)
		}
	}
}

func TestEntityLifecycleAutosaves(t *testing.T) {
	h := newHarness(t)

	var student, course diagram.Entity
	h.decode("POST", "/api/workspaces/ws1/entities", map[string]any{
		"name": "Student", "attributes": []string{" ID ", "Name"}, "position": map[string]float64{"x": 10, "y": 20},
	}, http.StatusCreated, &student)
	if student.ID == "" || len(student.Attributes) != 2 || student.Attributes[0].Name != "id" {
		t.Fatalf("student = %+v", student)
	}
	h.decode("POST", "/api/workspaces/ws1/entities", map[string]any{"name": "Course"}, http.StatusCreated, &course)

	var rel diagram.Relationship
	h.decode("POST", "/api/workspaces/ws1/relationships", map[string]any{
		"fromId": student.ID, "toId": course.ID, "name": "enrolls",
	}, http.StatusCreated, &rel)
	if rel.Cardinality != diagram.OneToMany {
		t.Errorf("cardinality = %q, want default 1:N", rel.Cardinality)
	}

	saved, err := h.storage.Get(context.Background(), "ws1")
	if err != nil {
		t.Fatalf("autosave: %v", err)
	}
	if len(saved.Model.Entities) != 2 || len(saved.Model.Relationships) != 1 {
		t.Errorf("saved model = %+v", saved.Model)
	}

	var removed map[string][]string
	h.decode("DELETE", "/api/workspaces/ws1/entities/"+student.ID, nil, http.StatusOK, &removed)
	if got := removed["removedRelationships"]; len(got) != 1 || got[0] != rel.ID {
		t.Errorf("removed = %v", got)
	}
	saved, _ = h.storage.Get(context.Background(), "ws1")
	if len(saved.Model.Entities) != 1 || len(saved.Model.Relationships) != 0 {
		t.Errorf("cascade not saved: %+v", saved.Model)
	}
}

func TestAttributeEndpoints(t *testing.T) {
	h := newHarness(t)
	var e diagram.Entity
	h.decode("POST", "/api/workspaces/ws/entities", map[string]any{"name": "Book", "attributes": []string{"isbn", "title"}}, http.StatusCreated, &e)
	base := "/api/workspaces/ws/entities/" + e.ID

	h.decode("POST", base+"/attributes", map[string]string{"name": "Author"}, http.StatusCreated, &e)
	if n := len(e.Attributes); n != 3 || e.Attributes[2].Name != "author" {
		t.Fatalf("after add = %+v", e.Attributes)
	}
	h.decode("PATCH", base+"/attributes/0", map[string]string{"category": "identifier"}, http.StatusOK, &e)
	if !e.Attributes[0].PK {
		t.Errorf("identifier should set PK: %+v", e.Attributes[0])
	}
	h.decode("POST", base+"/attributes/reorder", map[string]int{"from": 2, "to": 0}, http.StatusOK, &e)
	if e.Attributes[0].Name != "author" {
		t.Errorf("after reorder = %+v", e.Attributes)
	}
	h.decode("DELETE", base+"/attributes/0", nil, http.StatusOK, &e)
	if len(e.Attributes) != 2 {
		t.Errorf("after remove = %+v", e.Attributes)
	}

	resp, _ := h.do("DELETE", base+"/attributes/x", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad index status = %d", resp.StatusCode)
	}
	resp, _ = h.do("PATCH", base+"/attributes/0", map[string]string{"category": "weird"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad category status = %d", resp.StatusCode)
	}
}

func TestErrorStatus(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   errors.Code
	}{
		{"unknown entity", "PATCH", "/api/workspaces/ws/entities/nope", map[string]string{"name": "X"}, 404, errors.ErrCodeEntityNotFound},
		{"unknown relationship", "DELETE", "/api/workspaces/ws/relationships/nope", nil, 404, errors.ErrCodeRelationshipNotFound},
		{"malformed body", "POST", "/api/workspaces/ws/entities", "{", 400, errors.ErrCodeInvalidInput},
		{"unknown field", "POST", "/api/workspaces/ws/entities", map[string]string{"colour": "red"}, 400, errors.ErrCodeInvalidInput},
		{"bad format", "GET", "/api/workspaces/ws/export/gif", nil, 400, errors.ErrCodeInvalidFormat},
		{"bad import", "POST", "/api/workspaces/ws/import", `{"entities":[]}`, 400, errors.ErrCodeInvalidModel},
		{"bad workspace id", "GET", "/api/workspaces/..bad/", nil, 400, errors.ErrCodeInvalidInput},
		{"no tutor", "POST", "/api/workspaces/ws/tutor/hint", nil, 501, errors.ErrCodeUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := h.do(tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, data)
			}
			var body errorBody
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatal(err)
			}
			if body.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h := newHarness(t, WithMaxBodyBytes(64))
	resp, _ := h.do("PUT", "/api/workspaces/ws/case-study", map[string]string{"text": strings.Repeat("x", 200)})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestImportExport(t *testing.T) {
	h := newHarness(t)
	model := `{"caseStudy":"Shop","entities":[{"id":"a","name":"Order","attributes":[{"name":"ID","isPK":true}],"position":{"x":0,"y":0}}],"relationships":[]}`
	var snap struct {
		Version  uint64           `json:"version"`
		Entities []diagram.Entity `json:"entities"`
	}
	h.decode("POST", "/api/workspaces/shop/import", model, http.StatusOK, &snap)
	if len(snap.Entities) != 1 || snap.Entities[0].Attributes[0].Name != "id" {
		t.Fatalf("imported = %+v", snap)
	}

	resp, data := h.do("GET", "/api/workspaces/shop/export/txt", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export = %d: %s", resp.StatusCode, data)
	}
	if !strings.HasPrefix(string(data), "CASE STUDY:\nShop") {
		t.Errorf("txt = %q", data)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `shop.txt`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	resp, data = h.do("GET", "/api/workspaces/shop/export/svg", nil)
	if resp.Header.Get("Content-Type") != "image/svg+xml" || !bytes.Contains(data, []byte("<svg")) {
		t.Errorf("svg export = %s %q", resp.Header.Get("Content-Type"), data)
	}
}

func TestViewIsPersistedAndClamped(t *testing.T) {
	h := newHarness(t)
	var got struct{ X, Y, K float64 }
	h.decode("PUT", "/api/workspaces/v/view", map[string]float64{"x": 5, "y": 6, "k": 50}, http.StatusOK, &got)
	if got.K >= 50 {
		t.Errorf("scale not clamped: %v", got.K)
	}
	saved, err := h.storage.Get(context.Background(), "v")
	if err != nil {
		t.Fatalf("view not saved: %v", err)
	}
	if saved.View.X != 5 || saved.View.K != got.K {
		t.Errorf("saved view = %+v", saved.View)
	}
}

func TestWorkspaceReload(t *testing.T) {
	st := storage.NewMemoryStore()
	if err := st.Put(context.Background(), &storage.Workspace{
		ID:    "old",
		Model: diagram.Model{CaseStudy: "Zoo", Entities: []diagram.Entity{{ID: "e", Name: "Animal"}}, Relationships: []diagram.Relationship{}},
	}); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(New(WithStorage(st)).Handler())
	defer srv.Close()
	h := &harness{t: t, srv: srv, storage: st}

	var snap struct {
		CaseStudy string `json:"caseStudy"`
	}
	h.decode("GET", "/api/workspaces/old/", nil, http.StatusOK, &snap)
	if snap.CaseStudy != "Zoo" {
		t.Errorf("caseStudy = %q", snap.CaseStudy)
	}

	var list map[string][]string
	h.decode("GET", "/api/workspaces/", nil, http.StatusOK, &list)
	if len(list["workspaces"]) != 1 {
		t.Errorf("list = %v", list)
	}
	h.decode("DELETE", "/api/workspaces/old/", nil, http.StatusNoContent, nil)
	if _, err := st.Get(context.Background(), "old"); err == nil {
		t.Error("workspace still stored after delete")
	}
}

func TestTutorEndpoints(t *testing.T) {
	ft := &fakeTutor{}
	h := newHarness(t, WithTutor(ft))

	var sc map[string]string
	h.decode("POST", "/api/workspaces/t/tutor/scenario", map[string]string{"difficulty": "advanced"}, http.StatusOK, &sc)
	if !strings.Contains(sc["caseStudy"], "advanced") {
		t.Errorf("scenario = %v", sc)
	}
	var snap struct {
		CaseStudy string `json:"caseStudy"`
	}
	h.decode("GET", "/api/workspaces/t/", nil, http.StatusOK, &snap)
	if snap.CaseStudy != sc["caseStudy"] {
		t.Errorf("case study not applied: %q", snap.CaseStudy)
	}

	var sql map[string]string
	h.decode("POST", "/api/workspaces/t/tutor/sql", map[string]string{"dialect": "postgres"}, http.StatusOK, &sql)
	if sql["dialect"] != "postgres" {
		t.Errorf("sql = %v", sql)
	}
	resp, _ := h.do("POST", "/api/workspaces/t/tutor/sql", map[string]string{"dialect": "oracle"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown dialect status = %d", resp.StatusCode)
	}
	resp, _ = h.do("POST", "/api/workspaces/t/tutor/scenario", map[string]string{"difficulty": "extreme"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown difficulty status = %d", resp.StatusCode)
	}

	var ev tutor.Evaluation
	h.decode("POST", "/api/workspaces/t/tutor/evaluate", nil, http.StatusOK, &ev)
	if ev.Feedback != "ok" {
		t.Errorf("evaluation = %+v", ev)
	}
}

func TestTutorFailureKeepsCaseStudy(t *testing.T) {
	ft := &fakeTutor{err: errors.Wrap(errors.ErrCodeQuotaExceeded, &errors.QuotaExceededError{RetryAfter: 30}, "quota")}
	h := newHarness(t, WithTutor(ft))
	h.decode("PUT", "/api/workspaces/q/case-study", map[string]string{"text": "keep me"}, http.StatusNoContent, nil)

	resp, data := h.do("POST", "/api/workspaces/q/tutor/scenario", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if resp.Header.Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
	var body errorBody
	_ = json.Unmarshal(data, &body)
	if !strings.Contains(body.Message, "API key") {
		t.Errorf("message = %q", body.Message)
	}

	var snap struct {
		CaseStudy string `json:"caseStudy"`
	}
	h.decode("GET", "/api/workspaces/q/", nil, http.StatusOK, &snap)
	if snap.CaseStudy != "keep me" {
		t.Errorf("case study overwritten: %q", snap.CaseStudy)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewMetrics()
	h := newHarness(t, WithMetrics(m))
	h.decode("GET", "/healthz", nil, http.StatusOK, nil)
	resp, data := h.do("GET", "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
	if !bytes.Contains(data, []byte("ercanvas_http_requests_total")) {
		t.Errorf("missing http series:\n%s", data)
	}
}

func TestScene(t *testing.T) {
	h := newHarness(t)
	h.decode("POST", "/api/workspaces/s/entities", map[string]any{"name": "A", "attributes": []string{"id"}}, http.StatusCreated, nil)
	var scene struct {
		Cards []json.RawMessage `json:"cards"`
	}
	h.decode("GET", "/api/workspaces/s/scene?export=true", nil, http.StatusOK, &scene)
	if len(scene.Cards) != 1 {
		t.Errorf("cards = %d", len(scene.Cards))
	}
}

func TestHealthReportsBuild(t *testing.T) {
	h := newHarness(t)
	var health healthResponse
	h.decode("GET", "/healthz", nil, http.StatusOK, &health)
	if health.Status != "ok" || health.Build.Version == "" || health.Build.GoVersion == "" {
		t.Errorf("healthz = %+v", health)
	}
}

func TestPatchEntityAttributesNormalized(t *testing.T) {
	h := newHarness(t)
	var e diagram.Entity
	h.decode("POST", "/api/workspaces/ws1/entities", map[string]any{"name": "Customer"}, http.StatusCreated, &e)

	h.decode("PATCH", "/api/workspaces/ws1/entities/"+e.ID, map[string]any{
		"attributes": []map[string]any{
			{"name": "  CustomerID ", "isPK": false, "category": "identifier"},
			{"name": "Email", "isPK": true, "category": "descriptive"},
		},
	}, http.StatusOK, &e)
	if a := e.Attributes[0]; a.Name != "customerid" || !a.PK {
		t.Errorf("identifier attribute = %+v, want lowercased PK", a)
	}
	if a := e.Attributes[1]; a.Name != "email" || a.PK {
		t.Errorf("descriptive attribute = %+v, want non-PK", a)
	}
}
