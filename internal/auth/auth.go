// Package auth verifies bearer identity tokens and carries the caller's session through the
// request context.
package auth

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/idtoken"

	"parkadmin/app/internal/apperr"
)

// ErrInvalidToken is returned when a bearer token does not verify.
var ErrInvalidToken = eris.New("invalid identity token")

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// Verifier turns a bearer token into a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// GoogleVerifier validates Google ID tokens issued for one OAuth client.
type GoogleVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

var _ Verifier = (*GoogleVerifier)(nil)

// NewGoogleVerifier builds a verifier for tokens minted for clientID.
func NewGoogleVerifier(clientID string) (*GoogleVerifier, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, eris.New("google client id is required")
	}
	return &GoogleVerifier{audience: clientID, validate: idtoken.Validate}, nil
}

// Verify checks the token signature, expiry and audience and reads the profile claims.
func (v *GoogleVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	payload, err := v.validate(ctx, token, v.audience)
	if err != nil {
		return Identity{}, eris.Wrap(ErrInvalidToken, err.Error())
	}

	identity := Identity{
		Subject:       payload.Subject,
		Email:         claimString(payload.Claims, "email"),
		Name:          claimString(payload.Claims, "name"),
		Picture:       claimString(payload.Claims, "picture"),
		EmailVerified: claimBool(payload.Claims, "email_verified"),
	}
	if identity.Email == "" {
		return Identity{}, eris.Wrap(ErrInvalidToken, "token carries no email claim")
	}

	return identity, nil
}

func claimString(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return strings.TrimSpace(value)
}

func claimBool(claims map[string]any, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Access is the role an operation requires.
type Access string

const (
	// AccessPublic operations need no credential.
	AccessPublic Access = "public"
	// AccessSignedIn operations need any registered account, approved or not.
	AccessSignedIn Access = "signed-in"
	// AccessEditor operations need a signed-in, allowed user.
	AccessEditor Access = "editor"
	// AccessAdmin operations need an administrator.
	AccessAdmin Access = "admin"
)

// Session is the signed-in caller.
type Session struct {
	UserID    string
	Email     string
	Name      string
	IsAllowed bool
	IsAdmin   bool
}

// Permits reports whether the session may perform an operation at the given level.
func (s Session) Permits(level Access) error {
	switch level {
	case AccessPublic, AccessSignedIn, "":
		return nil
	case AccessAdmin:
		if !s.IsAdmin {
			return apperr.Forbidden("Administrator access is required")
		}
		return nil
	default:
		if !s.IsAllowed && !s.IsAdmin {
			return apperr.Forbidden("Your account has not been approved yet")
		}
		return nil
	}
}

type contextKey string

const sessionContextKey contextKey = "parkadmin/session"

// WithSession stores the session on ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext returns the session stored by WithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionContextKey).(Session)
	return s, ok
}
