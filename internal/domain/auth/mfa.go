package auth

import (
	"context"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const mfaIssuer = "workhours"

// MFASetup is a freshly generated, not yet enabled, TOTP secret.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// SetupMFA generates a new TOTP secret for username and stores it sealed. The
// secret only takes effect once EnableMFA confirms a code from it.
func (s *Service) SetupMFA(ctx context.Context, username string) (MFASetup, error) {
	if !s.Sealer.Configured() {
		return MFASetup{}, ErrMFAUnavailable
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      mfaIssuer,
		AccountName: username,
		Period:      30,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return MFASetup{}, err
	}
	sealed, err := s.Sealer.Seal([]byte(key.Secret()))
	if err != nil {
		return MFASetup{}, err
	}
	if err := s.Store.SetMFA(ctx, username, sealed, false); err != nil {
		return MFASetup{}, err
	}
	return MFASetup{Secret: key.Secret(), OTPAuthURL: key.URL()}, nil
}

func (s *Service) EnableMFA(ctx context.Context, username, code string) error {
	user, secret, err := s.mfaSecret(ctx, username)
	if err != nil {
		return err
	}
	if !s.validCode(code, secret) {
		return ErrMFAInvalid
	}
	return s.Store.SetMFA(ctx, user.Username, user.MFASecret, true)
}

// DisableMFA requires a current code so a stolen session alone cannot turn
// MFA off.
func (s *Service) DisableMFA(ctx context.Context, username, code string) error {
	user, secret, err := s.mfaSecret(ctx, username)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return ErrMFANotSetUp
	}
	if !s.validCode(code, secret) {
		return ErrMFAInvalid
	}
	return s.Store.SetMFA(ctx, user.Username, nil, false)
}

func (s *Service) mfaSecret(ctx context.Context, username string) (User, string, error) {
	user, found, err := s.Store.FindUser(ctx, username)
	if err != nil {
		return User{}, "", err
	}
	if !found || len(user.MFASecret) == 0 {
		return User{}, "", ErrMFANotSetUp
	}
	plain, err := s.Sealer.Open(user.MFASecret)
	if err != nil {
		return User{}, "", err
	}
	return user, string(plain), nil
}

func (s *Service) validCode(code, secret string) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, s.Clock.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
