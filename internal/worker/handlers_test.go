package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/thebtf/devdeck/internal/assistant"
	"github.com/thebtf/devdeck/internal/config"
	"github.com/thebtf/devdeck/internal/db/gorm"
	"github.com/thebtf/devdeck/internal/terminal"
	"github.com/thebtf/devdeck/pkg/models"
)

// fakeGenerator answers every prompt with a fixed text.
type fakeGenerator struct {
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return "generated", nil
}

// testService creates a Service backed by a temporary SQLite database.
// A nil gen leaves the AI endpoints unconfigured.
func testService(t *testing.T, gen assistant.Generator) (*Service, func()) {
	t.Helper()

	store, err := gorm.NewStore(gorm.Config{
		Path:     filepath.Join(t.TempDir(), "worker.db"),
		LogLevel: logger.Silent,
	})
	require.NoError(t, err)

	runner := terminal.NewRunner(terminal.RunnerConfig{Timeout: 5 * time.Second}, nil)
	svc := newService("test-version", config.Default(), store, runner, gen, nil)

	// Mark service as ready for tests
	svc.ready.Store(true)

	cleanup := func() {
		svc.broadcaster.Close()
		_ = store.Close()
	}
	return svc, cleanup
}

// doRequest sends a request through the router.
func doRequest(t *testing.T, svc *Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	svc.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createTerminal(t *testing.T, svc *Service) *models.TerminalSession {
	t.Helper()
	rec := doRequest(t, svc, http.MethodPost, "/api/terminals", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[*models.TerminalSession](t, rec)
}

func TestHandleHealth_ReturnsVersion(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	svc.version = "test-version-1.2.3"
	rec := doRequest(t, svc, http.MethodGet, "/api/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	response := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "test-version-1.2.3", response["version"])
	assert.EqualValues(t, 0, response["clients"])
}

func TestHandleVersion(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	svc.version = "v2.0.0-beta"
	rec := doRequest(t, svc, http.MethodGet, "/api/version", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2.0.0-beta", decode[map[string]string](t, rec)["version"])
}

func TestHandleReady(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	svc.ready.Store(false)
	rec := doRequest(t, svc, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	svc.ready.Store(true)
	rec = doRequest(t, svc, http.MethodGet, "/api/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode[map[string]string](t, rec)["status"])
}

func TestRequireReadyMiddleware(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	handler := svc.requireReady(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	}))

	svc.ready.Store(false)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	svc.ready.Store(true)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", rec.Body.String())

	svc.ready.Store(false)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, svc, http.MethodGet, "/api/terminals", "").Code)
}

func TestListTerminals_CreatesFirstTerminal(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	rec := doRequest(t, svc, http.MethodGet, "/api/terminals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":[]`)

	sessions := decode[[]*models.TerminalSession](t, rec)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Terminal 1", sessions[0].Name)

	rec = doRequest(t, svc, http.MethodGet, "/api/terminals?projectId="+sessions[0].ProjectID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*models.TerminalSession](t, rec), 1)

	rec = doRequest(t, svc, http.MethodGet, "/api/terminals?projectId=missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateTerminal(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	first := createTerminal(t, svc)
	assert.Equal(t, "Terminal 1", first.Name)
	assert.Empty(t, first.History)

	rec := doRequest(t, svc, http.MethodPost, "/api/terminals", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Terminal 2", decode[*models.TerminalSession](t, rec).Name)

	rec = doRequest(t, svc, http.MethodPost, "/api/terminals", `{"name":"build","projectId":"`+first.ProjectID+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	named := decode[*models.TerminalSession](t, rec)
	assert.Equal(t, "build", named.Name)
	assert.Equal(t, first.ProjectID, named.ProjectID)

	rec = doRequest(t, svc, http.MethodPost, "/api/terminals", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecute_EchoHi(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()
	session := createTerminal(t, svc)

	rec := doRequest(t, svc, http.MethodPost, "/api/terminals/"+session.ID+"/execute", `{"command":"echo hi"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated := decode[*models.TerminalSession](t, rec)
	require.Len(t, updated.History, 1)
	assert.Equal(t, "echo hi", updated.History[0].Command)
	assert.Equal(t, "hi", updated.History[0].Output)
	assert.Equal(t, 0, updated.History[0].ExitCode)
	assert.NotEmpty(t, updated.History[0].Timestamp)

	rec = doRequest(t, svc, http.MethodGet, "/api/terminals/"+session.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[*models.TerminalSession](t, rec).History, 1)

	rec = doRequest(t, svc, http.MethodGet, "/api/logs?projectId="+session.ProjectID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]*models.ConsoleLog](t, rec)
	require.Len(t, logs, 1)
	assert.Equal(t, "$ echo hi (exit 0)", logs[0].Message)
}

func TestExecute_Errors(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()
	session := createTerminal(t, svc)
	path := "/api/terminals/" + session.ID + "/execute"

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "missing command", path: path, body: `{}`, status: http.StatusBadRequest},
		{name: "empty command", path: path, body: `{"command":""}`, status: http.StatusBadRequest},
		{name: "no body", path: path, body: "", status: http.StatusBadRequest},
		{name: "malformed body", path: path, body: `{"command":`, status: http.StatusBadRequest},
		{name: "wrong type", path: path, body: `{"command":42}`, status: http.StatusBadRequest},
		{name: "unknown session", path: "/api/terminals/missing/execute", body: `{"command":"echo hi"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, svc, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestDeleteTerminal_Idempotent(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()
	session := createTerminal(t, svc)

	existing := doRequest(t, svc, http.MethodDelete, "/api/terminals/"+session.ID, "")
	missing := doRequest(t, svc, http.MethodDelete, "/api/terminals/"+session.ID, "")
	never := doRequest(t, svc, http.MethodDelete, "/api/terminals/never-existed", "")

	for _, rec := range []*httptest.ResponseRecorder{existing, missing, never} {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	}
	assert.Equal(t, http.StatusNotFound, doRequest(t, svc, http.MethodGet, "/api/terminals/"+session.ID, "").Code)
}

func TestRenameAndClearTerminal(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()
	session := createTerminal(t, svc)

	rec := doRequest(t, svc, http.MethodPatch, "/api/terminals/"+session.ID, `{"name":"logs"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "logs", decode[*models.TerminalSession](t, rec).Name)

	rec = doRequest(t, svc, http.MethodPatch, "/api/terminals/"+session.ID, `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doRequest(t, svc, http.MethodPatch, "/api/terminals/missing", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doRequest(t, svc, http.MethodPost, "/api/terminals/"+session.ID+"/execute", `{"command":"echo hi"}`)
	rec = doRequest(t, svc, http.MethodPost, "/api/terminals/"+session.ID+"/clear", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"history":[]`)
}

func TestExecute_BroadcastsToWebSocket(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()
	session := createTerminal(t, svc)

	srv := httptest.NewServer(svc.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() map[string]interface{} {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}
	assert.Equal(t, "connected", read()["type"])

	resp, err := http.Post(srv.URL+"/api/terminals/"+session.ID+"/execute", "application/json",
		bytes.NewBufferString(`{"command":"echo hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	logEvent := read()
	assert.Equal(t, "log_created", logEvent["type"])

	output := read()
	assert.Equal(t, "terminal_output", output["type"])
	data := output["data"].(map[string]interface{})
	assert.Equal(t, session.ID, data["id"])
	assert.Len(t, data["history"], 1)

	health := doRequest(t, svc, http.MethodGet, "/api/health", "")
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, health)["clients"])
}

func TestProjects(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	rec := doRequest(t, svc, http.MethodPost, "/api/projects", `{"name":"web","description":"frontend"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	project := decode[*models.Project](t, rec)
	assert.Equal(t, "web", project.Name)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, "/api/projects", `{"name":" "}`).Code)

	rec = doRequest(t, svc, http.MethodGet, "/api/projects", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]*models.Project](t, rec), 1)

	rec = doRequest(t, svc, http.MethodGet, "/api/projects/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, project.ID, decode[*models.Project](t, rec).ID)

	rec = doRequest(t, svc, http.MethodGet, "/api/projects/"+project.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, svc, http.MethodGet, "/api/projects/missing", "").Code)

	terminalRec := doRequest(t, svc, http.MethodPost, "/api/terminals", `{"projectId":"`+project.ID+`"}`)
	require.Equal(t, http.StatusCreated, terminalRec.Code)
	session := decode[*models.TerminalSession](t, terminalRec)

	rec = doRequest(t, svc, http.MethodDelete, "/api/projects/"+project.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
	assert.Equal(t, http.StatusNotFound, doRequest(t, svc, http.MethodGet, "/api/terminals/"+session.ID, "").Code)
	assert.Equal(t, http.StatusOK, doRequest(t, svc, http.MethodDelete, "/api/projects/"+project.ID, "").Code)
}

func TestCurrentProject_CreatesDefault(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	rec := doRequest(t, svc, http.MethodGet, "/api/projects/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.DefaultProjectName, decode[*models.Project](t, rec).Name)
}

func TestLogs(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	for i := 0; i < 3; i++ {
		rec := doRequest(t, svc, http.MethodPost, "/api/logs", fmt.Sprintf(`{"level":"info","source":"test","message":"m%d"}`, i))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, "/api/logs", `{"level":"loud","message":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, "/api/logs", `{"level":"info"}`).Code)

	rec := doRequest(t, svc, http.MethodGet, "/api/logs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[[]*models.ConsoleLog](t, rec)
	require.Len(t, logs, 2)
	assert.Equal(t, "m1", logs[0].Message)
	assert.Equal(t, "m2", logs[1].Message)

	rec = doRequest(t, svc, http.MethodDelete, "/api/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode[map[string]interface{}](t, rec)["deleted"])

	rec = doRequest(t, svc, http.MethodGet, "/api/logs", "")
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGenerate(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc, cleanup := testService(t, nil)
		defer cleanup()

		rec := doRequest(t, svc, http.MethodPost, "/api/ai/generate", `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, decode[map[string]string](t, rec)["error"], "unavailable")
	})

	t.Run("configured", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, cleanup := testService(t, gen)
		defer cleanup()

		rec := doRequest(t, svc, http.MethodPost, "/api/ai/generate", `{"prompt":"hi"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "generated", decode[map[string]string](t, rec)["text"])
		assert.Equal(t, []string{"hi"}, gen.prompts)

		assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, "/api/ai/generate", `{}`).Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		svc, cleanup := testService(t, &fakeGenerator{err: errors.New("boom")})
		defer cleanup()

		rec := doRequest(t, svc, http.MethodPost, "/api/ai/generate", `{"prompt":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestExplain(t *testing.T) {
	gen := &fakeGenerator{}
	svc, cleanup := testService(t, gen)
	defer cleanup()
	session := createTerminal(t, svc)
	path := "/api/terminals/" + session.ID + "/explain"

	assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, path, "").Code, "no executions yet")

	doRequest(t, svc, http.MethodPost, "/api/terminals/"+session.ID+"/execute", `{"command":"echo hi"}`)

	rec := doRequest(t, svc, http.MethodPost, path, `{"index":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "generated", decode[map[string]string](t, rec)["text"])
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "<command>echo hi</command>")

	assert.Equal(t, http.StatusBadRequest, doRequest(t, svc, http.MethodPost, path, `{"index":5}`).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, svc, http.MethodPost, "/api/terminals/missing/explain", "").Code)
}

func TestStatic(t *testing.T) {
	svc, cleanup := testService(t, nil)
	defer cleanup()

	rec := doRequest(t, svc, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/assets/app.js")

	rec = doRequest(t, svc, http.MethodGet, "/assets/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	assert.Equal(t, http.StatusNotFound, doRequest(t, svc, http.MethodGet, "/assets/missing.js", "").Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("x: %w", models.ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("x: %w", models.ErrValidation), status: http.StatusBadRequest},
		{err: fmt.Errorf("x: %w", models.ErrConflict), status: http.StatusConflict},
		{err: assistant.ErrUpstreamUnavailable, status: http.StatusInternalServerError},
		{err: errors.New("disk full"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, statusFor(tt.err), tt.err.Error())
	}
}
