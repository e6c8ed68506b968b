package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"workhours/internal/platform/clock"
	"workhours/internal/platform/crypto"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("super-secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := CheckPassword(hash, "super-secret"); err != nil {
		t.Fatalf("expected password to match, got %v", err)
	}

	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{Username: "jdoe", EmployeeID: "E1", Role: RoleUser}

	token, err := GenerateToken(secret, claims, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.Username != claims.Username || parsed.EmployeeID != claims.EmployeeID || parsed.Role != claims.Role {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
}

func TestParseTokenRejectsExpiredAndForeign(t *testing.T) {
	expired, err := GenerateToken("s", Claims{Username: "a", EmployeeID: "E1", Role: RoleUser}, time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("s", expired); err == nil {
		t.Fatal("expected expired token to fail")
	}

	other, _ := GenerateToken("other", Claims{Username: "a", EmployeeID: "E1", Role: RoleUser}, time.Now(), time.Hour)
	if _, err := ParseToken("s", other); err == nil {
		t.Fatal("expected signature mismatch")
	}

	badRole, _ := GenerateToken("s", Claims{Username: "a", EmployeeID: "E1", Role: "root"}, time.Now(), time.Hour)
	if _, err := ParseToken("s", badRole); err == nil {
		t.Fatal("expected unknown role to be rejected")
	}
}

type memoryUsers map[string]User

func (m memoryUsers) FindUser(ctx context.Context, username string) (User, bool, error) {
	u, ok := m[username]
	return u, ok, nil
}

func (m memoryUsers) CreateUser(ctx context.Context, user User) error {
	if _, ok := m[user.Username]; ok {
		return ErrUserExists
	}
	m[user.Username] = user
	return nil
}

func (m memoryUsers) SetMFA(ctx context.Context, username string, secret []byte, enabled bool) error {
	u, ok := m[username]
	if !ok {
		return ErrMFANotSetUp
	}
	u.MFASecret, u.MFAEnabled = secret, enabled
	m[username] = u
	return nil
}

func TestServiceLogin(t *testing.T) {
	users := memoryUsers{}
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := NewService(users, "secret", 12*time.Hour, clock.Fixed(now), nil)

	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "jdoe", Password: "pw", Role: RoleUser, EmployeeID: "E1"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	session, err := svc.Login(context.Background(), "jdoe", "pw", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.EmployeeID != "E1" || session.User.IsAdmin() {
		t.Fatalf("unexpected user %+v", session.User)
	}
	if !session.ExpiresAt.Equal(now.Add(12 * time.Hour)) {
		t.Fatalf("unexpected expiry %s", session.ExpiresAt)
	}

	if _, err := svc.Login(context.Background(), "jdoe", "nope", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost", "pw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc := NewService(memoryUsers{}, "secret", time.Hour, nil, nil)
	if _, err := svc.CreateUser(context.Background(), CreateUserInput{Username: "x", Password: "pw", Role: "owner"}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestMFALifecycle(t *testing.T) {
	ctx := context.Background()
	users := memoryUsers{}
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	sealer, err := crypto.NewSealer(strings.Repeat("k", 32))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	svc := NewService(users, "secret", time.Hour, clock.Fixed(now), sealer)
	if _, err := svc.CreateUser(ctx, CreateUserInput{Username: "boss", Password: "pw", Role: RoleAdmin}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	setup, err := svc.SetupMFA(ctx, "boss")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if string(users["boss"].MFASecret) == setup.Secret {
		t.Fatal("expected the stored secret to be sealed")
	}
	if !strings.HasPrefix(setup.OTPAuthURL, "otpauth://totp/") {
		t.Fatalf("unexpected url %q", setup.OTPAuthURL)
	}

	// Setup alone does not require a code at login.
	if _, err := svc.Login(ctx, "boss", "pw", ""); err != nil {
		t.Fatalf("login before enable: %v", err)
	}

	code, err := totp.GenerateCode(setup.Secret, now)
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := svc.EnableMFA(ctx, "boss", wrong); !errors.Is(err, ErrMFAInvalid) {
		t.Fatalf("expected ErrMFAInvalid, got %v", err)
	}
	if err := svc.EnableMFA(ctx, "boss", code); err != nil {
		t.Fatalf("enable: %v", err)
	}

	if _, err := svc.Login(ctx, "boss", "pw", ""); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected ErrMFARequired, got %v", err)
	}
	if _, err := svc.Login(ctx, "boss", "pw", wrong); !errors.Is(err, ErrMFAInvalid) {
		t.Fatalf("expected ErrMFAInvalid, got %v", err)
	}
	if _, err := svc.Login(ctx, "boss", "pw", code); err != nil {
		t.Fatalf("login with code: %v", err)
	}

	if err := svc.DisableMFA(ctx, "boss", code); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if users["boss"].MFAEnabled || len(users["boss"].MFASecret) != 0 {
		t.Fatalf("expected mfa cleared, got %+v", users["boss"])
	}
	if err := svc.DisableMFA(ctx, "boss", code); !errors.Is(err, ErrMFANotSetUp) {
		t.Fatalf("expected ErrMFANotSetUp, got %v", err)
	}
}

func TestMFASetupNeedsKey(t *testing.T) {
	users := memoryUsers{"jdoe": {Username: "jdoe"}}
	svc := NewService(users, "secret", time.Hour, nil, nil)
	if _, err := svc.SetupMFA(context.Background(), "jdoe"); !errors.Is(err, ErrMFAUnavailable) {
		t.Fatalf("expected ErrMFAUnavailable, got %v", err)
	}
}
