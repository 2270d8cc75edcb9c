package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/notecheck/internal/index"
	"github.com/starford/notecheck/internal/resultservice"
	"github.com/starford/notecheck/internal/standards"
	"github.com/starford/notecheck/internal/storage"
	"github.com/starford/notecheck/internal/testutil"
)

const (
	genRel  = "3/llama3/gen/1000.000000/gen_note.txt"
	evalRel = "3/llama3/gen/1000.000000/eval_report.json"
)

// testEnv sets up a results tree, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) http.Handler {
	t.Helper()
	root, stdDir := testutil.TestResults(t)
	db := testutil.TestDB(t)
	testutil.WriteArtifact(t, root, genRel, "uniquetoken patient note")
	testutil.WriteArtifact(t, root, evalRel, testutil.EvalReport(t, standards.Reference, 0.5))
	if err := index.Sync(db, root, slog.New(slog.NewTextHandler(io.Discard, nil))); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc := resultservice.NewService(storage.NewFS(), db, root, standards.New(stdDir), map[int]string{3: "reference"})
	return NewRouter(svc, authEnabled, token, sseHandler)
}

func do(t *testing.T, router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListArtifacts(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/artifacts?filename=gen_note.txt&idx=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp ArtifactListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 1 || len(resp.Artifacts) != 1 {
		t.Fatalf("resp = %+v, want one artifact", resp)
	}
	if resp.Artifacts[0].Path != genRel {
		t.Errorf("path = %q", resp.Artifacts[0].Path)
	}

	w = do(t, router, http.MethodGet, "/artifacts?idx=4,5", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 0 {
		t.Errorf("filtered total = %d, want 0", resp.Total)
	}
}

func TestGetArtifact(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/artifacts/"+genRel, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d, body = %s", w.Code, w.Body.String())
	}
	var d ArtifactDetail
	_ = json.Unmarshal(w.Body.Bytes(), &d)
	if d.Content != "uniquetoken patient note" {
		t.Errorf("content = %q", d.Content)
	}
	if w.Header().Get("ETag") != `"`+d.Checksum+`"` {
		t.Errorf("ETag = %q", w.Header().Get("ETag"))
	}

	req := httptest.NewRequest(http.MethodGet, "/artifacts/"+genRel, nil)
	req.Header.Set("If-None-Match", w.Header().Get("ETag"))
	cached := httptest.NewRecorder()
	router.ServeHTTP(cached, req)
	if cached.Code != http.StatusNotModified {
		t.Errorf("conditional get = %d, want 304", cached.Code)
	}
	if cached.Body.Len() != 0 {
		t.Errorf("304 body = %q", cached.Body.String())
	}
}

func TestGetArtifact_Errors(t *testing.T) {
	router := testEnv(t, "")

	for target, want := range map[string]int{
		"/artifacts/3/llama3/gen/1000.000000/nope.txt": http.StatusNotFound,
		"/artifacts/not/an/address":                    http.StatusBadRequest,
	} {
		w := do(t, router, http.MethodGet, target, nil)
		if w.Code != want {
			t.Errorf("%s = %d, want %d", target, w.Code, want)
		}
	}
}

func TestLocate(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/locate?filename=eval_report.json&model=llama3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("locate = %d", w.Code)
	}
	var resp LocateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Addresses) != 1 || resp.Addresses[0].Path() != evalRel {
		t.Errorf("addresses = %+v", resp.Addresses)
	}

	w = do(t, router, http.MethodGet, "/locate", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("locate without filename = %d, want 400", w.Code)
	}
}

func TestStandardsRoundTrip(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/standards/3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get standard = %d", w.Code)
	}
	var std Standard
	_ = json.Unmarshal(w.Body.Bytes(), &std)
	if !std.Reference || std.Content != "reference" {
		t.Errorf("std = %+v, want reference fallback", std)
	}

	w = do(t, router, http.MethodPut, "/standards/3", SetStandardRequest{Source: genRel})
	if w.Code != http.StatusOK {
		t.Fatalf("set standard = %d, body = %s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &std)
	if std.Reference || std.Content != "uniquetoken patient note" {
		t.Errorf("std = %+v", std)
	}

	w = do(t, router, http.MethodGet, "/standards", nil)
	var list StandardListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Standards) != 1 {
		t.Errorf("standards = %+v", list.Standards)
	}
}

func TestStandards_Errors(t *testing.T) {
	router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/standards/99", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown idx = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/standards/-1", nil); w.Code != http.StatusBadRequest {
		t.Errorf("negative idx = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/standards/3", SetStandardRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty source = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodPut, "/standards/3", SetStandardRequest{Source: "../../etc/passwd"}); w.Code != http.StatusBadRequest {
		t.Errorf("outside source = %d, want 400", w.Code)
	}
}

func TestScores(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/scores?most_recent=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("scores = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ScoresResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Scores) != 3 {
		t.Fatalf("scores = %+v, want 3 rouge types", resp.Scores)
	}
	for _, s := range resp.Scores {
		if s.F != 0.5 {
			t.Errorf("%s f = %v, want 0.5", s.RougeType, s.F)
		}
	}
}

func TestStats(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/stats", nil)
	var s index.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &s)
	if s.Artifacts != 2 || s.Runs != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	results := resp["results"].([]any)
	if len(results) != 1 {
		t.Errorf("search results = %d, want 1", len(results))
	}
}

func TestSearchEndpoint_Filters(t *testing.T) {
	router := testEnv(t, "")

	for target, want := range map[string]int{
		"/search?q=uniquetoken&idx=3":                 1,
		"/search?q=uniquetoken&model=other":           0,
		"/search?q=uniquetoken&filename=gen_note.txt": 1,
	} {
		w := do(t, router, http.MethodGet, target, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d", target, w.Code)
		}
		var resp SearchResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Results) != want {
			t.Errorf("%s: %d results, want %d", target, len(resp.Results), want)
		}
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")

	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/artifacts", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/artifacts", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/artifacts", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("401 without WWW-Authenticate")
	}
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	router := testEnv(t, "secret123")

	if w := do(t, router, http.MethodGet, "/artifacts?access_token=secret123", nil); w.Code != http.StatusOK {
		t.Errorf("query token = %d, want 200", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/artifacts?access_token=wrong", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong query token = %d, want 401", w.Code)
	}

	// A header, even a bad one, takes precedence over the query.
	req := httptest.NewRequest(http.MethodGet, "/artifacts?access_token=secret123", nil)
	req.Header.Set("Authorization", "Basic Zm9v")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("basic header = %d, want 401", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	router := testEnvWithSSE(t, true, "secret", blockingSSE)

	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	router := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
