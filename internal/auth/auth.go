// Package auth supplies the credential attached to the gateway connection.
//
// Token refresh is owned by an external collaborator; this package only
// defines how the streaming client obtains the current token at connect
// time.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TokenProvider returns the credential to attach to a connect attempt.
// It is consulted on every (re)connect, so an implementation backed by a
// refreshing source always hands out the newest token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token, useful for tests and short-lived tools.
type Static string

// Token returns the fixed token.
func (s Static) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty token")
	}
	return string(s), nil
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken string

// Token returns the current value of the environment variable.
func (e EnvToken) Token(ctx context.Context) (string, error) {
	v := os.Getenv(string(e))
	if v == "" {
		return "", fmt.Errorf("environment variable %s is empty", string(e))
	}
	return v, nil
}

// FileToken reads the token from a file on every call, so an external
// refresher can rotate the credential by rewriting the file.
type FileToken string

// Token returns the trimmed file contents.
func (f FileToken) Token(ctx context.Context) (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", string(f))
	}
	return token, nil
}
