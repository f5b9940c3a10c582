// Package auth supplies bearer tokens for calls to the autoapply services.
//
// Token retrieval is best-effort: immediately after sign-in the credential
// provider may briefly have nothing to hand out, so callers that can tolerate
// the delay wrap a source with WithRetry.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// ErrNoToken indicates the credential provider has no usable token. The user
// must (re-)authenticate before the operation can proceed.
var ErrNoToken = errors.New("no auth token available")

// TokenSource supplies a bearer token on demand.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticTokenSource returns a source that always yields the given token.
func StaticTokenSource(token string) TokenSource {
	return TokenSourceFunc(func(context.Context) (string, error) {
		if token == "" {
			return "", ErrNoToken
		}
		return token, nil
	})
}

// FileTokenSource reads a bearer token from a file on every call, so a token
// refreshed externally (e.g. by the auth provider's CLI) is picked up without
// restarting. Concurrent reads are collapsed through singleflight.
type FileTokenSource struct {
	path string
	sf   singleflight.Group
	now  func() time.Time
}

// NewFileTokenSource creates a file-backed token source.
func NewFileTokenSource(path string) *FileTokenSource {
	return &FileTokenSource{path: path, now: time.Now}
}

// Token implements TokenSource. A missing file or an expired JWT is reported
// as ErrNoToken; the caller decides whether to retry or prompt for login.
func (s *FileTokenSource) Token(ctx context.Context) (string, error) {
	v, err, _ := s.sf.Do(s.path, func() (any, error) {
		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", ErrNoToken
			}
			return "", fmt.Errorf("failed to read token file %s: %w", s.path, err)
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", ErrNoToken
		}
		if expired, err := tokenExpired(token, s.now()); err == nil && expired {
			return "", ErrNoToken
		}
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the service's job. Tokens that are not JWTs or
// carry no exp claim are passed through as-is.
func tokenExpired(token string, now time.Time) (bool, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, err
	}
	return exp.Before(now), nil
}
