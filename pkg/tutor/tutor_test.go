package tutor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/ercanvas/pkg/cache"
	"github.com/matzehuels/ercanvas/pkg/diagram"
	"github.com/matzehuels/ercanvas/pkg/errors"
)

func library() diagram.Model {
	return diagram.Model{
		CaseStudy: "A library lends books to members.",
		Entities: []diagram.Entity{
			{ID: "b", Name: "Book", Attributes: []diagram.Attribute{{Name: "isbn", PK: true}, {Name: "title"}}},
			{ID: "m", Name: "Member", Attributes: []diagram.Attribute{{Name: "id", PK: true}}},
		},
		Relationships: []diagram.Relationship{
			{ID: "r", FromID: "m", ToID: "b", Cardinality: diagram.OneToMany, Name: "borrows"},
		},
	}
}

// reply writes a generateContent response carrying text.
func reply(w http.ResponseWriter, text string) {
	json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	c := NewClient("test-key", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()), WithRetry(3, time.Millisecond))
	return c, &calls
}

func TestGenerateScenario(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/models/"+DefaultFastModel+":generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Error("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "INTERMEDIATE") {
			t.Errorf("prompt should carry the difficulty: %s", body)
		}
		reply(w, "  A clinic schedules appointments.  ")
	})
	got, err := c.GenerateScenario(context.Background(), Intermediate)
	if err != nil {
		t.Fatal(err)
	}
	if got != "A clinic schedules appointments." {
		t.Errorf("scenario = %q", got)
	}
}

func TestEvaluateModel(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, DefaultReasoningModel) {
			t.Errorf("evaluation should use the reasoning model: %s", r.URL.Path)
		}
		var req generateRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMIMEType != "application/json" {
			t.Error("evaluation should request JSON output")
		}
		prompt := req.Contents[0].Parts[0].Text
		for _, want := range []string{"isbn (PK)", `"from":"Member"`, `"cardinality":"1:N"`} {
			if !strings.Contains(prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		reply(w, `{"score": 140, "feedback": "good", "details": {"entities": "e", "attributes": "a", "relationships": "r"}}`)
	})
	ev, err := c.EvaluateModel(context.Background(), library())
	if err != nil {
		t.Fatal(err)
	}
	if ev.Score != 100 || ev.Feedback != "good" || ev.Details.Relationships != "r" {
		t.Errorf("evaluation = %+v", ev)
	}
}

func TestEvaluateModelRequiresEntities(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { reply(w, "{}") })
	_, err := c.EvaluateModel(context.Background(), diagram.Model{CaseStudy: "x"})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
	if *calls != 0 {
		t.Error("no request should be made for an empty model")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		code      errors.Code
		wantCalls int32
	}{
		{"quota", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "7")
			http.Error(w, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, http.StatusTooManyRequests)
		}, errors.ErrCodeQuotaExceeded, 1},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}, errors.ErrCodeUnauthorized, 1},
		{"server error retried", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}, errors.ErrCodeNetwork, 3},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}, errors.ErrCodeBadResponse, 1},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}, errors.ErrCodeBadResponse, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestClient(t, tt.handler)
			_, err := c.GuidedHint(context.Background(), library())
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
			if got := atomic.LoadInt32(calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	var n int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		reply(w, "Try an associative entity.")
	})
	hint, err := c.GuidedHint(context.Background(), library())
	if err != nil || hint != "Try an associative entity." {
		t.Errorf("hint = %q, %v", hint, err)
	}
}

func TestInvalidEvaluationJSON(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { reply(w, "score: high") })
	_, err := c.EvaluateModel(context.Background(), library())
	if !errors.Is(err, errors.ErrCodeBadResponse) {
		t.Errorf("err = %v, want BAD_RESPONSE", err)
	}
}

func TestMissingAPIKey(t *testing.T) {
	_, err := NewClient("").GuidedHint(context.Background(), library())
	if !errors.Is(err, errors.ErrCodeUnauthorized) {
		t.Errorf("err = %v, want UNAUTHORIZED", err)
	}
}

func TestGenerateSQLStripsFences(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "SERIAL") {
			t.Error("postgres prompt should carry postgres rules")
		}
		reply(w, "```sql\nCREATE TABLE book (isbn TEXT PRIMARY KEY);\n```")
	})
	sql, err := c.GenerateSQL(context.Background(), library(), Postgres)
	if err != nil {
		t.Fatal(err)
	}
	if sql != "CREATE TABLE book (isbn TEXT PRIMARY KEY);" {
		t.Errorf("sql = %q", sql)
	}
}

func TestParseDifficultyAndDialect(t *testing.T) {
	if d, err := ParseDifficulty(" Advanced "); err != nil || d != Advanced {
		t.Errorf("ParseDifficulty = %q, %v", d, err)
	}
	if _, err := ParseDifficulty("expert"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	for in, want := range map[string]Dialect{"": MySQL, "MySQL": MySQL, "pg": Postgres, "postgresql": Postgres} {
		if got, err := ParseDialect(in); err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDialect("oracle"); err == nil {
		t.Error("expected error for oracle")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.New(errors.ErrCodeQuotaExceeded, "q"), "API key"},
		{errors.New(errors.ErrCodeInvalidInput, "create at least one entity first"), "create at least one entity first"},
		{errors.New(errors.ErrCodeNetwork, "down"), "try again"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("UserMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}

type countingService struct {
	Service
	hints int
}

func (s *countingService) GuidedHint(context.Context, diagram.Model) (string, error) {
	s.hints++
	return "hint", nil
}

func TestCachedIgnoresLayout(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	inner := &countingService{}
	svc := NewCached(inner, fc)
	ctx := context.Background()

	m := library()
	if _, err := svc.GuidedHint(ctx, m); err != nil {
		t.Fatal(err)
	}
	m.Entities[0].Position = diagram.Pt(500, 500)
	if h, err := svc.GuidedHint(ctx, m); err != nil || h != "hint" {
		t.Fatalf("hint = %q, %v", h, err)
	}
	if inner.hints != 1 {
		t.Errorf("inner called %d times, want 1", inner.hints)
	}

	m.Entities[0].Name = "Volume"
	_, _ = svc.GuidedHint(ctx, m)
	if inner.hints != 2 {
		t.Errorf("renamed entity should miss the cache")
	}
}

func TestEmptyReplyFallbacks(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, "")
	})
	ctx := context.Background()

	hint, err := c.GuidedHint(ctx, library())
	if err != nil || hint != FallbackHint {
		t.Errorf("GuidedHint = %q, %v; want fallback hint", hint, err)
	}
	sql, err := c.GenerateSQL(ctx, library(), Postgres)
	if err != nil || !strings.HasPrefix(sql, "-- ") || !strings.Contains(sql, Postgres.DisplayName()) {
		t.Errorf("GenerateSQL = %q, %v; want SQL comment", sql, err)
	}
	if _, err := c.GenerateScenario(ctx, Basic); !errors.Is(err, errors.ErrCodeBadResponse) {
		t.Errorf("GenerateScenario err = %v, want BAD_RESPONSE", err)
	}
	if got := atomic.LoadInt32(calls); got != 3 {
		t.Errorf("calls = %d, want 3 (empty replies are not retried)", got)
	}

	cached := NewCached(c, cache.NewNullCache())
	if hint, _ := cached.GuidedHint(ctx, library()); hint != FallbackHint {
		t.Errorf("cached GuidedHint = %q", hint)
	}
}

func TestInvalidEndpoint(t *testing.T) {
	c := NewClient("test-key", WithEndpoint("localhost:9000"))
	if _, err := c.GuidedHint(context.Background(), library()); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}
