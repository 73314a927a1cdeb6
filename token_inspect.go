package authstate

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenInfo is what the engine needs from a provider-issued access token
type TokenInfo struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// accessTokenClaims are the registered claims plus the provider extensions
// we care about
type accessTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenInspectorConfig configures token verification. Provide either a JWK
// Set URL (asymmetric provider keys, refreshed in the background) or a static
// HMAC signing key.
type TokenInspectorConfig struct {
	JWKSetURL       string
	SigningKey      []byte
	RefreshInterval time.Duration
}

// TokenInspector validates provider-issued access tokens locally and
// extracts the user identity and expiry, so the engine can derive a User
// from a raw session token without a provider round-trip.
type TokenInspector struct {
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
}

// NewTokenInspector builds an inspector from the given configuration
func NewTokenInspector(cfg TokenInspectorConfig) (*TokenInspector, error) {
	if cfg.JWKSetURL != "" {
		refresh := cfg.RefreshInterval
		if refresh <= 0 {
			refresh = time.Hour
		}
		jwks, err := keyfunc.Get(cfg.JWKSetURL, keyfunc.Options{
			RefreshInterval:   refresh,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load JWK set")
		}
		return &TokenInspector{keyFunc: jwks.Keyfunc, jwks: jwks}, nil
	}

	if len(cfg.SigningKey) == 0 {
		return nil, goerrors.New("token inspector requires a JWK Set URL or signing key", goerrors.CategoryValidation)
	}

	key := cfg.SigningKey
	return &TokenInspector{
		keyFunc: func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
	}, nil
}

// Inspect validates the token signature and standard claims and returns the
// extracted identity information
func (ti *TokenInspector) Inspect(tokenString string) (*TokenInfo, error) {
	claims := &accessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, ti.keyFunc)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token").
			WithCode(goerrors.CodeUnauthorized)
	}
	if !token.Valid {
		return nil, goerrors.New("invalid access token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "access token subject is not a user id")
	}

	info := &TokenInfo{
		UserID: userID,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Close stops the background JWK refresh, if any
func (ti *TokenInspector) Close() {
	if ti.jwks != nil {
		ti.jwks.EndBackground()
	}
}
