package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const AdminUserKey contextKey = "admin_user"

const (
	RoleChat  = "chat"
	RoleAdmin = "admin"

	SessionTokenTTL = 24 * time.Hour
	AdminTokenTTL   = 15 * time.Minute
)

var ErrInvalidToken = errors.New("invalid token")

type JWTAuth struct {
	Secret []byte
}

func NewJWTAuth(secret string) *JWTAuth {
	return &JWTAuth{Secret: []byte(secret)}
}

// SessionClaims identifies the chat session a WebSocket connection belongs to.
type SessionClaims struct {
	SessionID string
	ClientID  string
	ExpiresAt time.Time
}

// GenerateSessionToken creates a chat session JWT with 24 hour expiry.
func (j *JWTAuth) GenerateSessionToken(sessionID, clientID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(SessionTokenTTL)
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"client_id":  clientID,
		"role":       RoleChat,
		"exp":        expiresAt.Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseSessionToken verifies a chat session token.
func (j *JWTAuth) ParseSessionToken(tokenStr string) (*SessionClaims, error) {
	claims, err := j.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if role, _ := claims["role"].(string); role != RoleChat {
		return nil, ErrInvalidToken
	}

	sessionID, _ := claims["session_id"].(string)
	clientID, _ := claims["client_id"].(string)
	if sessionID == "" || clientID == "" {
		return nil, ErrInvalidToken
	}

	sc := &SessionClaims{SessionID: sessionID, ClientID: clientID}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		sc.ExpiresAt = exp.Time
	}
	return sc, nil
}

// GenerateAdminToken creates an admin JWT with 15 minute expiry.
func (j *JWTAuth) GenerateAdminToken(username string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  username,
		"role": RoleAdmin,
		"exp":  time.Now().Add(AdminTokenTTL).Unix(),
		"iat":  time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTAuth) parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return j.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AdminMiddleware validates an admin bearer token and attaches the admin
// username to the context.
func (j *JWTAuth) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		claims, err := j.parse(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		if role, _ := claims["role"].(string); role != RoleAdmin {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "Admin access required", r)
			return
		}

		username, _ := claims["sub"].(string)
		ctx := context.WithValue(r.Context(), AdminUserKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAdminUser extracts the admin username from request context.
func GetAdminUser(ctx context.Context) string {
	name, _ := ctx.Value(AdminUserKey).(string)
	return name
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := GetRequestID(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
