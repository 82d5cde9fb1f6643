// ABOUTME: Bearer JWT authentication for the admin API
// ABOUTME: Tokens are HS256 signed with a shared secret and may be restricted to some accounts

package security

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// RoleAdmin is the role claim every admin token carries
const RoleAdmin = "admin"

const (
	claimsContextKey = "admin_claims"
	minSecretLength  = 32
)

var (
	ErrWeakSecret        = errors.New("admin token secret must be at least 32 bytes")
	ErrMissingBearer     = errors.New("authorization header with bearer token is required")
	ErrInsufficientRole  = errors.New("token does not carry the admin role")
	ErrUnexpectedSigning = errors.New("unexpected token signing method")
)

// AdminClaims are the claims of an admin API token
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	// Accounts limits the token to these account ids; empty means every account
	Accounts []string `json:"accounts,omitempty"`
}

// CanAccess reports whether the token may act on accountID
func (c *AdminClaims) CanAccess(accountID string) bool {
	return len(c.Accounts) == 0 || slices.Contains(c.Accounts, accountID)
}

// TokenAuthenticator issues and validates admin tokens
type TokenAuthenticator struct {
	secret []byte
	issuer string
	logger *slog.Logger
}

func NewTokenAuthenticator(secret, issuer string, logger *slog.Logger) (*TokenAuthenticator, error) {
	if len(secret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenAuthenticator{secret: []byte(secret), issuer: issuer, logger: logger}, nil
}

// Issue signs a token for subject valid for ttl
func (a *TokenAuthenticator) Issue(subject string, accounts []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role:     RoleAdmin,
		Accounts: accounts,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate parses tokenString and checks signature, expiry, issuer and role
func (a *TokenAuthenticator) Validate(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedSigning, token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid admin token: %w", err)
	}
	if a.issuer != "" && !claims.VerifyIssuer(a.issuer, true) {
		return nil, fmt.Errorf("invalid admin token: unexpected issuer %q", claims.Issuer)
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInsufficientRole
	}
	return claims, nil
}

// Middleware rejects requests without a valid admin bearer token
func (a *TokenAuthenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingBearer.Error())
			}

			claims, err := a.Validate(token)
			if err != nil {
				a.logger.Warn("Admin token rejected",
					"client_ip", c.RealIP(),
					"path", c.Path(),
					"error", err)
				if errors.Is(err, ErrInsufficientRole) {
					return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authentication token")
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by Middleware, or nil
func ClaimsFrom(c echo.Context) *AdminClaims {
	claims, _ := c.Get(claimsContextKey).(*AdminClaims)
	return claims
}

// ExtractBearerToken returns the token of a "Bearer <token>" header value
func ExtractBearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
