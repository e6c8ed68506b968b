package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminMFAFlow(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.DataEncryptionKey = strings.Repeat("k", 32)
	env := newTestEnvWithConfig(t, cfg)
	admin := env.login(t, adminUser, adminPassword)

	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/mfa/setup", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	setup := decode[struct {
		Secret string `json:"secret"`
		URL    string `json:"otpauthUrl"`
	}](t, body.Data)
	require.NotEmpty(t, setup.Secret)
	assert.Contains(t, setup.URL, "workhours")

	resp, body = env.do(t, http.MethodPost, "/api/v1/auth/mfa/enable", admin, map[string]string{"code": "not-a-code"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "mfa_invalid", body.Error.Code)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/mfa/enable", admin, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "mfa_required", body.Error.Code)

	resp, body = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword, "mfaCode": "12"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "mfa_invalid", body.Error.Code)

	code, err = totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": adminUser, "password": adminPassword, "mfaCode": code})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMFAUnavailableWithoutKey(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, adminUser, adminPassword)

	resp, body := env.do(t, http.MethodPost, "/api/v1/auth/mfa/setup", admin, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "mfa_unavailable", body.Error.Code)

	resp, _ = env.do(t, http.MethodPost, "/api/v1/auth/mfa/setup", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
