package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"

	auth "polyglot/internal/domain/auth"
	"polyglot/internal/domain/auth/ports"
)

// DefaultAccessTTL applies when no TTL is configured.
const DefaultAccessTTL = 30 * time.Minute

// JWTTokenManager issues and verifies HS256 session tokens.
type JWTTokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewJWTTokenManager creates a new token manager.
func NewJWTTokenManager(secret, issuer string, ttl time.Duration) *JWTTokenManager {
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &JWTTokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// TTL implements ports.TokenManager.
func (m *JWTTokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue implements ports.TokenManager. Times are encoded as NumericDate with
// millisecond fractions, so exp - iat equals the TTL exactly. issuedAt is rounded
// up to the millisecond; the token never expires before issuedAt+TTL.
func (m *JWTTokenManager) Issue(_ context.Context, subject string, role auth.Role, issuedAt time.Time) (auth.IssuedToken, error) {
	if len(m.secret) == 0 {
		return auth.IssuedToken{}, errors.New("jwt secret not configured")
	}
	if subject == "" {
		return auth.IssuedToken{}, errors.New("token subject is required")
	}
	iat := ceilMillis(issuedAt)
	exp := iat.Add(m.ttl)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": string(role),
		"iat":  numericDate(iat),
		"exp":  numericDate(exp),
	}
	if m.issuer != "" {
		claims["iss"] = m.issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return auth.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}
	return auth.IssuedToken{Token: signed, Subject: subject, Role: role, IssuedAt: iat, ExpiresAt: exp}, nil
}

// Parse implements ports.TokenManager. The token is valid while now < exp.
// jwt truncates fractional NumericDates through float64, so time claims are
// checked here against the millisecond values decoded by claimsFromMap.
func (m *JWTTokenManager) Parse(_ context.Context, token string, now time.Time) (auth.Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return auth.Claims{}, fmt.Errorf("%w: invalid token claims", auth.ErrInvalidToken)
	}
	claims, err := claimsFromMap(mapClaims)
	if err != nil {
		return auth.Claims{}, err
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return auth.Claims{}, fmt.Errorf("%w: unexpected issuer %q", auth.ErrInvalidToken, claims.Issuer)
	}
	if !now.Before(claims.ExpiresAt) {
		return auth.Claims{}, auth.ExpiredToken()
	}
	return claims, nil
}

// ParseUnverified decodes claims without checking the signature. Clients use it to
// schedule local expiry; it must never be used to authorize anything.
func ParseUnverified(token string) (auth.Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Claims{}, fmt.Errorf("%w: invalid token claims", auth.ErrInvalidToken)
	}
	return claimsFromMap(claims)
}

func claimsFromMap(claims jwt.MapClaims) (auth.Claims, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing subject", auth.ErrInvalidToken)
	}
	exp, ok := parseNumericDate(claims["exp"])
	if !ok {
		return auth.Claims{}, fmt.Errorf("%w: missing expiry", auth.ErrInvalidToken)
	}
	out := auth.Claims{Subject: sub, ExpiresAt: exp}
	if iat, ok := parseNumericDate(claims["iat"]); ok {
		out.IssuedAt = iat
	}
	if iss, err := claims.GetIssuer(); err == nil {
		out.Issuer = iss
	}
	role, _ := claims["role"].(string)
	out.Role = auth.Role(role)
	return out, nil
}

func ceilMillis(t time.Time) time.Time {
	truncated := t.Truncate(time.Millisecond)
	if truncated.Before(t) {
		return truncated.Add(time.Millisecond)
	}
	return truncated
}

// numericDate encodes t as seconds since the epoch with a millisecond fraction.
func numericDate(t time.Time) any {
	ms := t.UnixMilli()
	if ms%1000 == 0 {
		return ms / 1000
	}
	return float64(ms) / 1000
}

// parseNumericDate decodes seconds since the epoch, rounding to the millisecond so
// float64 noise cannot move the instant.
func parseNumericDate(value any) (time.Time, bool) {
	var seconds float64
	switch v := value.(type) {
	case float64:
		seconds = v
	case int64:
		seconds = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = f
	default:
		return time.Time{}, false
	}
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(math.Round(seconds * 1000))).UTC(), true
}

var _ ports.TokenManager = (*JWTTokenManager)(nil)
