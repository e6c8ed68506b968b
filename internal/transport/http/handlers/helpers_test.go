package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"workhours/internal/app/server"
	"workhours/internal/platform/config"
	"workhours/internal/platform/email"
	"workhours/internal/platform/filestore"
)

const (
	adminUser     = "root"
	adminPassword = "ChangeMe123!"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type captureMailer struct {
	mu   sync.Mutex
	sent []email.Message
}

func (m *captureMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) messages() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

func testConfig(dir string) config.Config {
	return config.Config{
		DatabaseURL:             "sqlite:" + filepath.Join(dir, "workhours.db"),
		JWTSecret:               "test-secret",
		TokenTTL:                time.Hour,
		FrontendDir:             filepath.Join(dir, "public"),
		Environment:             "test",
		LogLevel:                "error",
		BusinessTimezone:        "America/Vancouver",
		LoggingWindow:           48 * time.Hour,
		SeedAdminUsername:       adminUser,
		SeedAdminPassword:       adminPassword,
		EmailFrom:               "no-reply@test.local",
		ReportRecipient:         "office@test.local",
		StorageDriver:           config.StorageLocal,
		StorageDir:              filepath.Join(dir, "files"),
		RunMigrations:           true,
		RunSeed:                 true,
		MaxBodyBytes:            1048576,
		MaxUploadBytes:          10 * 1048576,
		LoginRateLimitPerMinute: 1000,
	}
}

type captureAlerts struct {
	mu   sync.Mutex
	sent []string
}

func (a *captureAlerts) Error(_ context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, message)
	return nil
}

func (a *captureAlerts) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

type testEnv struct {
	app    *server.App
	ts     *httptest.Server
	mailer *captureMailer
	alerts *captureAlerts
}

func newTestEnv(t *testing.T, opts ...server.Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	return newTestEnvWithConfig(t, testConfig(dir), opts...)
}

func newTestEnvWithConfig(t *testing.T, cfg config.Config, opts ...server.Option) *testEnv {
	t.Helper()
	mailer := &captureMailer{}
	alerts := &captureAlerts{}
	opts = append([]server.Option{
		server.WithMailer(mailer),
		server.WithAlerts(alerts),
		server.WithFileStore(filestore.NewLocal(cfg.StorageDir)),
	}, opts...)
	app, err := server.New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(app.Router)
	t.Cleanup(func() {
		ts.Close()
		app.Close()
	})
	return &testEnv{app: app, ts: ts, mailer: mailer, alerts: alerts}
}

func (e *testEnv) today() time.Time {
	now := e.app.Now().In(e.app.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	resp, env := e.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func (e *testEnv) createUser(t *testing.T, adminToken, username, name string) string {
	t.Helper()
	resp, _ := e.do(t, http.MethodPost, "/api/v1/admin/users", adminToken, map[string]string{
		"username": username,
		"password": "Password123",
		"role":     "user",
		"name":     name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return e.login(t, username, "Password123")
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return out
}
