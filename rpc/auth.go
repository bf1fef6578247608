package rpc

import (
	"context"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// JWTAuth accepts HMAC-signed bearer tokens in addition to the static token.
// A token must carry WriteScope in its scope claim and a sub claim naming the
// account it acts for. That subject becomes the verified caller of every
// mutating method.
type JWTAuth struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// WriteScope is required on JWT bearer tokens for mutating methods.
const WriteScope = "market:write"

type jwtVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

func newJWTVerifier(cfg JWTAuth) *jwtVerifier {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil
	}
	leeway := cfg.ClockSkew
	if leeway <= 0 {
		leeway = 2 * time.Minute
	}
	return &jwtVerifier{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: strings.TrimSpace(cfg.Audience),
		leeway:   leeway,
	}
}

func (v *jwtVerifier) verify(tokenString string) (string, error) {
	if v == nil {
		return "", errors.New("jwt auth not configured")
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(v.leeway),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token invalid")
	}
	if !hasScope(claims["scope"], WriteScope) {
		return "", errors.New("insufficient scope")
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject required")
	}
	return subject, nil
}

// principal is the authenticated identity behind a mutating call. The static
// operator token relays callers it has verified itself, so its caller is
// taken from the request. A JWT binds the caller to its subject.
type principal struct {
	subject  string
	operator bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

var errCallerMismatch = errors.New("caller does not match authenticated subject")

// bindCaller resolves the verified caller for a mutating request.
func bindCaller(p principal, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	if p.operator {
		return claimed, nil
	}
	if p.subject == "" {
		return "", errCallerMismatch
	}
	if claimed != "" && claimed != p.subject {
		return "", errCallerMismatch
	}
	return p.subject, nil
}

func hasScope(raw interface{}, want string) bool {
	switch v := raw.(type) {
	case string:
		for _, scope := range strings.Fields(v) {
			if scope == want {
				return true
			}
		}
	case []interface{}:
		for _, entry := range v {
			if s, ok := entry.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}
