package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier is what the HTTP layer needs from a Verifier.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// Verifier checks RS256 access tokens issued by Auth0.
type Verifier struct {
	issuer     string
	audiences  []string
	emailClaim string
	keyfunc    jwt.Keyfunc
	parser     *jwt.Parser
	now        func() time.Time
}

// NewVerifier builds a verifier. keyFunc resolves the signing key, usually
// JWKS.Keyfunc from NewJWKS.
func NewVerifier(issuer string, audiences []string, emailClaim string, keyFunc jwt.Keyfunc) *Verifier {
	return &Verifier{
		issuer:     issuer,
		audiences:  audiences,
		emailClaim: emailClaim,
		keyfunc:    keyFunc,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
		now:        time.Now,
	}
}

// Verify validates the token and extracts the identity.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	claims := jwt.MapClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	now := v.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Identity{}, fmt.Errorf("%w: expired or missing exp", ErrInvalidToken)
	}
	if !claims.VerifyIssuedAt(now, true) {
		return Identity{}, fmt.Errorf("%w: bad or missing iat", ErrInvalidToken)
	}
	if !claims.VerifyIssuer(v.issuer, true) {
		return Identity{}, fmt.Errorf("%w: issuer mismatch", ErrInvalidToken)
	}
	if !v.audienceOK(claims) {
		return Identity{}, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	if email == "" && v.emailClaim != "" {
		email, _ = claims[v.emailClaim].(string)
	}
	return Identity{UserID: sub, Email: email}, nil
}

func (v *Verifier) audienceOK(claims jwt.MapClaims) bool {
	for _, aud := range v.audiences {
		if aud != "" && claims.VerifyAudience(aud, true) {
			return true
		}
	}
	return false
}

// NewJWKS fetches the key set at url and keeps it fresh in the background.
// Call EndBackground on shutdown.
func NewJWKS(url string, logger *zap.Logger) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			logger.Error("JWKS refresh failed", zap.String("url", url), zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS: %w", err)
	}
	return jwks, nil
}
