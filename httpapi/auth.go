package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ownerKey struct{}

// Authenticator verifies HS256 bearer tokens and issues them.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// AuthOption configures an Authenticator.
type AuthOption func(*Authenticator)

// WithIssuer requires tokens to carry iss and stamps it on issued tokens.
func WithIssuer(issuer string) AuthOption {
	return func(a *Authenticator) {
		a.issuer = issuer
	}
}

// WithLeeway tolerates clock skew when checking exp and nbf.
func WithLeeway(leeway time.Duration) AuthOption {
	return func(a *Authenticator) {
		a.leeway = leeway
	}
}

// NewAuthenticator creates an Authenticator for the given HS256 secret.
func NewAuthenticator(secret []byte, opts ...AuthOption) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, ErrSecretRequired
	}
	a := &Authenticator{secret: secret}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// IssueToken signs a token whose subject is owner. A zero ttl issues a token
// without expiry.
func (a *Authenticator) IssueToken(owner string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  owner,
		Issuer:   a.issuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify checks a raw token and returns its subject.
func (a *Authenticator) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", fmt.Errorf("%w: token has expired", ErrInvalidToken)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", fmt.Errorf("%w: bad signature", ErrInvalidToken)
		default:
			return "", fmt.Errorf("%w: malformed or unverifiable", ErrInvalidToken)
		}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the token's subject as the request owner.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, ErrMissingToken.Error())
			return
		}
		owner, err := a.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error(), raw)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

// OwnerFromContext returns the authenticated owner of a request.
func OwnerFromContext(ctx context.Context) (string, bool) {
	owner, ok := ctx.Value(ownerKey{}).(string)
	return owner, ok && owner != ""
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
