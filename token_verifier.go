package hopon

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWKSVerifier verifies access tokens against the backend's published JWK
// set. The backend mints the token; the client normally trusts it, but a
// verifier catches a tampered handoff payload before it is committed.
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	logger Logger
}

var _ TokenVerifier = (*JWKSVerifier)(nil)

// NewJWKSVerifier fetches the JWK set at jwksURL and keeps it refreshed in
// the background.
func NewJWKSVerifier(jwksURL string, logger Logger) (*JWKSVerifier, error) {
	if logger == nil {
		logger = defLogger{}
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc from JWK Set URL: %w", err)
	}

	return &JWKSVerifier{jwks: jwks, logger: logger}, nil
}

// Verify implements TokenVerifier.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) error {
	parsed, err := jwt.Parse(token, v.jwks.Keyfunc)
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// Close stops the background JWKS refresh.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}

// HMACVerifier verifies tokens signed with a shared symmetric key. Useful in
// development against a backend that signs with HS256.
type HMACVerifier struct {
	signingKey []byte
}

var _ TokenVerifier = (*HMACVerifier)(nil)

func NewHMACVerifier(signingKey []byte) *HMACVerifier {
	return &HMACVerifier{signingKey: signingKey}
}

// Verify implements TokenVerifier.
func (v *HMACVerifier) Verify(ctx context.Context, token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}

// TokenExpiry decodes the token's exp claim without verifying the
// signature. Debug aid only; never an authorization decision.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
