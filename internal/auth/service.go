package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/streamlink/chatcore/internal/core"
)

var (
	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotPrivileged is returned when a valid token carries an ordinary role.
	ErrNotPrivileged = errors.New("role is not privileged")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
)

// Service issues and checks operator tokens.
type Service struct {
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(jwtConfig *JWTConfig) *Service {
	return &Service{jwtConfig: jwtConfig}
}

// IssueToken mints a token for a privileged operator.
func (s *Service) IssueToken(userID int64, username, role string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > 128 {
		return "", ErrInvalidUsername
	}
	r, ok := core.ParseRole(role)
	if !ok || !r.Privileged() {
		return "", ErrNotPrivileged
	}

	token, err := GenerateToken(s.jwtConfig, userID, username, string(r))
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// Authorize validates tokenString and returns claims of a privileged operator.
func (s *Service) Authorize(tokenString string) (*Claims, error) {
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	r, ok := core.ParseRole(claims.Role)
	if !ok || !r.Privileged() {
		return nil, ErrNotPrivileged
	}
	return claims, nil
}
