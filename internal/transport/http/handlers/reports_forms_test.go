package handlers_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWeeklyReportSendAndDownload(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminUser, adminPassword)
	alice := env.createUser(t, admin, "alice", "Alice Builder")
	today := env.today().Format("2006-01-02")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/hours", alice, map[string]any{
		"date":     today,
		"projects": []map[string]any{{"name": "Tower A", "location": "Burnaby", "hours": 8, "description": "framing"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/reports/weekly", admin, map[string]string{"weekOf": today})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outcome := decode[struct {
		Label     string  `json:"label"`
		Employees int     `json:"employees"`
		Hours     float64 `json:"totalHours"`
		Sent      bool    `json:"sent"`
		Empty     bool    `json:"empty"`
	}](t, body.Data)

	weekday := env.today().Weekday()
	if weekday == 0 || weekday == 6 {
		// Weekend entries fall outside the Monday..Friday window.
		assert.True(t, outcome.Empty)
		return
	}
	assert.True(t, outcome.Sent)
	assert.Equal(t, 1, outcome.Employees)
	assert.InDelta(t, 8.0, outcome.Hours, 0.0001)

	sent := env.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Weekly Work Hours Report: "+outcome.Label, sent[0].Subject)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, outcome.Label+".xlsx", sent[0].Attachments[0].Filename)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/admin/reports/weekly.xlsx?weekOf="+today, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+admin)
	download, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer download.Body.Close()
	require.Equal(t, http.StatusOK, download.StatusCode)
	assert.Contains(t, download.Header.Get("Content-Disposition"), outcome.Label+".xlsx")

	raw, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer book.Close()
	assert.Contains(t, book.GetSheetList(), "All Employees")
	assert.Contains(t, book.GetSheetList(), "Alice Builder")

	resp, _ = env.do(t, http.MethodPost, "/api/v1/admin/reports/weekly", alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func photo(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func postForm(t *testing.T, env *testEnv, token, templateID string, fields map[string]string, files map[string][]byte) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	for field, data := range files {
		part, err := writer.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, env.ts.URL+"/api/v1/forms/"+templateID, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestInspectionFormSubmission(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminUser, adminPassword)
	alice := env.createUser(t, admin, "alice", "Alice")

	resp, body := env.do(t, http.MethodGet, "/api/v1/forms", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	templates := decode[[]struct {
		ID string `json:"id"`
	}](t, body.Data)
	require.Len(t, templates, 4)

	fields := map[string]string{
		"serviceDate":  env.today().Format("2006-01-02"),
		"technician":   "Alice",
		"customerName": "Acme Strata",
	}
	submitted, raw := postForm(t, env, alice, "furnace-service", fields, map[string][]byte{"picture1": photo(t)})
	require.Equal(t, http.StatusOK, submitted.StatusCode, raw)

	sent := env.mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Furnace Report", sent[0].Subject)
	require.Len(t, sent[0].Attachments, 2)
	assert.True(t, strings.HasSuffix(sent[0].Attachments[0].Filename, ".pdf"))

	rejected, raw := postForm(t, env, alice, "furnace-service", fields, map[string][]byte{"picture1": []byte("not an image")})
	assert.Equal(t, http.StatusBadRequest, rejected.StatusCode, raw)

	missing, _ := postForm(t, env, alice, "no-such-form", fields, nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Len(t, env.mailer.messages(), 1)
}

func TestEmployeeProfileAccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminUser, adminPassword)
	alice := env.createUser(t, admin, "alice", "Alice")
	bob := env.createUser(t, admin, "bob", "Bob")

	resp, body := env.do(t, http.MethodPut, "/api/v1/employees/alice", alice, map[string]any{
		"fullName":   "Alice Builder",
		"email":      "alice@example.com",
		"tshirtSize": "M",
		"dob":        "1990-04-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
	}](t, body.Data)
	assert.Equal(t, "Alice Builder", updated.FullName)

	resp, body = env.do(t, http.MethodPut, "/api/v1/employees/alice", alice, map[string]any{"email": "not-an-email", "tshirtSize": "HUGE"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", body.Error.Code)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/employees/alice", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/v1/employees", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = env.do(t, http.MethodGet, "/api/v1/employees", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]map[string]any](t, body.Data), 3)
}

func TestAuthSessionCookieAndLogout(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": adminUser, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/v1/me", nil)
	require.NoError(t, err)
	req.AddCookie(session)
	me, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	defer me.Body.Close()
	assert.Equal(t, http.StatusOK, me.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == "session" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	resp, _ = env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJobRunHistory(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminUser, adminPassword)
	alice := env.createUser(t, admin, "alice", "Alice Builder")

	resp, _ := env.do(t, http.MethodPost, "/api/v1/admin/reports/weekly", admin, map[string]string{"weekOf": "2024-06-05"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/v1/admin/jobs?jobType=weekly_report", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))
	runs := decode[[]struct {
		ID      string `json:"id"`
		JobType string `json:"jobType"`
		Status  string `json:"status"`
		Details struct {
			Label string `json:"label"`
			Empty bool   `json:"empty"`
		} `json:"details"`
	}](t, body.Data)
	require.Len(t, runs, 1)
	assert.Equal(t, "weekly_report", runs[0].JobType)
	assert.Equal(t, "completed", runs[0].Status)
	assert.Equal(t, "03-07JUN24", runs[0].Details.Label)
	assert.True(t, runs[0].Details.Empty)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/jobs/"+runs[0].ID, admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/jobs/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/jobs?startedFrom=yesterday", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/jobs", alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWeeklyReportFailureRaisesAlert(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.ReportRecipient = ""
	env := newTestEnvWithConfig(t, cfg)
	admin := env.login(t, adminUser, adminPassword)

	resp, body := env.do(t, http.MethodPost, "/api/v1/admin/reports/weekly", admin, map[string]string{"weekOf": "2024-06-05"})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "dependency_failed", body.Error.Code)

	alerts := env.alerts.messages()
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0], "weekly_report")
	assert.Empty(t, env.mailer.messages())

	resp, _ = env.do(t, http.MethodGet, "/api/v1/admin/jobs?status=failed", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Total-Count"))
}
