package auth

import (
	"context"
	"strings"
	"time"

	"workhours/internal/platform/clock"
	"workhours/internal/platform/crypto"
)

type Service struct {
	Store  UserStore
	Secret string
	TTL    time.Duration
	Clock  clock.Clock
	// Sealer protects stored MFA secrets. MFA cannot be set up without a
	// configured key.
	Sealer *crypto.Sealer
}

func NewService(store UserStore, secret string, ttl time.Duration, clk clock.Clock, sealer *crypto.Sealer) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{Store: store, Secret: secret, TTL: ttl, Clock: clk, Sealer: sealer}
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserContext `json:"-"`
}

// Login checks the password, and the TOTP code when MFA is enabled, then
// issues a signed token. Unknown users and wrong passwords both answer
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password, mfaCode string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, found, err := s.Store.FindUser(ctx, username)
	if err != nil {
		return Session{}, err
	}
	if !found || CheckPassword(user.PasswordHash, password) != nil {
		return Session{}, ErrInvalidCredentials
	}
	if user.MFAEnabled {
		if strings.TrimSpace(mfaCode) == "" {
			return Session{}, ErrMFARequired
		}
		secret, err := s.Sealer.Open(user.MFASecret)
		if err != nil {
			return Session{}, err
		}
		if !s.validCode(mfaCode, string(secret)) {
			return Session{}, ErrMFAInvalid
		}
	}

	now := s.Clock.Now()
	token, err := GenerateToken(s.Secret, Claims{Username: user.Username, EmployeeID: user.EmployeeID, Role: user.Role}, now, s.TTL)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		ExpiresAt: now.Add(s.TTL),
		User:      UserContext{Username: user.Username, EmployeeID: user.EmployeeID, Role: user.Role},
	}, nil
}

type CreateUserInput struct {
	Username   string
	Password   string
	Role       string
	EmployeeID string
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if !ValidRole(in.Role) {
		return User{}, ErrInvalidRole
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Username:     strings.TrimSpace(in.Username),
		PasswordHash: hash,
		Role:         in.Role,
		EmployeeID:   in.EmployeeID,
	}
	if user.EmployeeID == "" {
		user.EmployeeID = user.Username
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}
