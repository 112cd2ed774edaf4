// Package middleware provides HTTP middleware for the dojo API.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/defidojo/dojo-backend/pkg/logger"
)

var (
	ErrMissingToken = errors.New("middleware: missing bearer token")
	ErrInvalidToken = errors.New("middleware: invalid token")
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	walletKey contextKey = "wallet"
)

// Claims carries the platform's JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies HS256 bearer tokens and places the caller's identity on the
// request context.
type Auth struct {
	secret   []byte
	tokenTTL time.Duration
	log      *logger.Logger
}

func NewAuth(secret string, tokenTTL time.Duration, log *logger.Logger) *Auth {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &Auth{secret: []byte(secret), tokenTTL: tokenTTL, log: log}
}

// IssueToken mints a signed token for an authenticated wallet session.
func (a *Auth) IssueToken(userID, wallet string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Wallet: wallet,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a raw token string and returns the caller's user ID.
// Its shape matches what the websocket handler needs for query-string auth.
func (a *Auth) VerifyToken(tokenString string) (string, error) {
	claims, err := a.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (a *Auth) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Handler rejects requests without a valid bearer token.
func (a *Auth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "missing Authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, "invalid Authorization header format")
			return
		}

		claims, err := a.parse(parts[1])
		if err != nil {
			a.log.WithError(err).Warn("token validation failed")
			unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		if claims.Wallet != "" {
			ctx = context.WithValue(ctx, walletKey, claims.Wallet)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the authenticated user ID, or "" for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// GetWallet returns the authenticated wallet address, if any.
func GetWallet(ctx context.Context) string {
	wallet, _ := ctx.Value(walletKey).(string)
	return wallet
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q}`, detail)
}
