package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"carteira/internal/core"
)

type ctxKey int

const userIDKey ctxKey = iota

// CheckoutSubject is the subject the payment provider's webhook tokens carry.
const CheckoutSubject = "checkout-provider"

var (
	ErrMissingToken     = errors.New("missing bearer token")
	ErrInvalidToken     = errors.New("invalid bearer token")
	ErrCheckoutDisabled = errors.New("checkout confirmation is not configured")
)

// TokenVerifier checks HS256 bearer tokens issued by the identity provider.
// The subject claim is the ledger user id.
type TokenVerifier struct {
	secret []byte
	issuer string
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses tokenStr and returns its subject.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

// Issue signs a token for userID. Used by tests and local tooling; in
// production tokens come from the identity provider.
func (v *TokenVerifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// requireAuth rejects requests without a valid bearer token and stores the
// token subject in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.writeError(w, r, ErrMissingToken)
			return
		}
		userID, err := s.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// requireCheckoutAuth admits only the payment provider: a bearer token signed
// with the checkout webhook secret whose subject is CheckoutSubject. User
// tokens fail verification against that secret and are forbidden.
func (s *Server) requireCheckoutAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.checkout == nil {
			s.writeError(w, r, ErrCheckoutDisabled)
			return
		}
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			s.writeError(w, r, ErrMissingToken)
			return
		}
		sub, err := s.checkout.Verify(strings.TrimSpace(raw))
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: checkout confirmation requires the provider token", core.ErrForbidden))
			return
		}
		if sub != CheckoutSubject {
			s.writeError(w, r, fmt.Errorf("%w: unexpected checkout token subject %q", core.ErrForbidden, sub))
			return
		}
		next(w, r)
	}
}

func userIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
