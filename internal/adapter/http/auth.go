package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/scenefetch/internal/adapter/http/ratelimit"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/service"
)

const (
	CookieName     = "auth_token"
	CookieMaxAge   = int(service.TokenLifetime / time.Second)
	CookiePath     = "/"
	CookieSameSite = http.SameSiteStrictMode
)

type AuthService interface {
	ValidatePassword(username, password string) error
	GenerateToken(username string) (string, error)
	ValidateToken(token string) (string, error)
}

// AuthMiddleware accepts a bearer token on any request. The auth cookie is
// only honoured on safe methods so a browser EventSource can follow a job
// without exposing mutations to cross-site requests.
func AuthMiddleware(authSvc AuthService, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" && isSafeMethod(r.Method) {
			if cookie, err := r.Cookie(CookieName); err == nil {
				token = cookie.Value
			}
		}
		if token == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="scenefetch"`)
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if _, err := authSvc.ValidateToken(token); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="scenefetch", error="invalid_token"`)
			msg := "invalid token"
			if errors.Is(err, service.ErrExpiredToken) {
				msg = "token expired"
			}
			writeError(w, http.StatusUnauthorized, msg)
			return
		}

		next(w, r)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenHandler exchanges credentials for a bearer token. Repeated failures
// from one client are slowed down by the backoff and eventually blocked.
func TokenHandler(
	authSvc AuthService,
	limiter *ratelimit.LoginRateLimiter,
	tracker *ratelimit.LoginAttemptTracker,
	backoff *service.Backoff,
	behindProxy bool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := clientIP(r, behindProxy)

		allowed, retryAfter := limiter.Check(clientID)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		var req tokenRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := authSvc.ValidatePassword(req.Username, req.Password); err != nil {
			failures := tracker.RecordFailure(clientID)
			logger.Warn.Printf("failed login for %q from %s (%d consecutive)",
				logger.SanitizeForLog(req.Username), logger.SanitizeForLog(clientID), failures)
			select {
			case <-time.After(backoff.Duration(failures)):
			case <-r.Context().Done():
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := authSvc.GenerateToken(req.Username)
		if err != nil {
			logger.Error.Printf("generate token: %v", err)
			writeError(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		tracker.RecordSuccess(clientID)
		limiter.Reset(clientID)

		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    token,
			MaxAge:   CookieMaxAge,
			Path:     CookiePath,
			Secure:   true,
			HttpOnly: true,
			SameSite: CookieSameSite,
		})
		writeJSON(w, http.StatusOK, tokenResponse{
			Token:     token,
			ExpiresAt: time.Now().Add(service.TokenLifetime).UTC(),
		})
	}
}

// clientIP trusts X-Forwarded-For only when the server sits behind a proxy.
func clientIP(r *http.Request, behindProxy bool) string {
	if behindProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
