package api

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envAuth0TestMode    = "AUTH0_TEST_MODE"
	envTestJWTSecret    = "TEST_JWT_SECRET"
	envLocalAuthMode    = "LOCAL_AUTH_MODE"
	envLocalAuthSecret  = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

// Auth validates bearer tokens and resolves them to a user identifier.
// In production it checks RS256 signatures against a JWKS endpoint; in
// local and test modes it accepts HS256 tokens signed with a shared
// secret, such as those minted by the gen-token command.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type jwksEntry struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates a token validator. HS256 mode is enabled when either
// LOCAL_AUTH_MODE=hs256 or AUTH0_TEST_MODE=1 is set.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer}
	a.keyCacheTTL = jwksCacheTTL()

	if secret, ok := sharedSecretFromEnv(); ok {
		a.TestMode = true
		a.TestSecret = secret
	}

	method := "RS256"
	if a.TestMode {
		method = "HS256"
	}
	a.parser = jwt.NewParser(jwt.WithValidMethods([]string{method}))
	return a
}

func sharedSecretFromEnv() ([]byte, bool) {
	switch mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode {
	case "":
	case "hs256":
		secret := os.Getenv(envLocalAuthSecret)
		if secret == "" {
			panic("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		return []byte(secret), true
	default:
		panic("unsupported LOCAL_AUTH_MODE value")
	}

	if os.Getenv(envAuth0TestMode) == "1" {
		secret := os.Getenv(envTestJWTSecret)
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
		return []byte(secret), true
	}
	return nil, false
}

func jwksCacheTTL() time.Duration {
	raw := os.Getenv(envJWKSCacheTTL)
	if raw == "" {
		return defaultJWKSCacheTTL
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		panic("invalid JWKS_CACHE_TTL")
	}
	return parsed
}

// UserIDFromAuthHeader resolves an Authorization header value to the
// authenticated user.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return "", err
	}
	return a.UserIDFromBearer(token)
}

// UserIDFromBearer verifies a raw bearer token and returns its subject.
func (a *Auth) UserIDFromBearer(token []byte) (string, error) {
	if len(token) == 0 {
		return "", errBadAuthorization
	}

	parsed, err := a.parser.Parse(readOnlyString(token), a.signingKey)
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	if err := a.verifyClaims(claims); err != nil {
		return "", err
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) signingKey(t *jwt.Token) (any, error) {
	if a.TestMode {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.TestSecret, nil
	}
	return a.jwksKey(t)
}

// verifyClaims rechecks the time claims with one minute of skew and
// enforces audience and issuer when configured.
func (a *Auth) verifyClaims(claims jwt.MapClaims) error {
	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return errors.New("token used before issued")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return errors.New("invalid issuer")
	}
	return nil
}

// jwksKey resolves the verification key for a token, caching keys per
// kid so steady-state requests skip the keyfunc lookup.
func (a *Auth) jwksKey(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(jwksEntry)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}

	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, jwksEntry{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}
