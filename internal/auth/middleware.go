package auth

import (
	"net/http"
	"strings"
)

// Skipper allows callers to bypass authentication for specific requests.
type Skipper func(r *http.Request) bool

// ErrorHandler renders an authentication failure.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware attaches bearer-token claims to the request context.
//
// Requests without an Authorization header pass through anonymously; the
// handlers decide which routes need a caller. A header that is present but
// malformed or invalid is rejected through OnError.
type Middleware struct {
	Config  Config
	Skipper Skipper
	OnError ErrorHandler
}

// NewMiddleware constructs Middleware with an optional skipper.
func NewMiddleware(cfg Config, skipper Skipper, onError ErrorHandler) Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}
	return Middleware{Config: cfg, Skipper: skipper, OnError: onError}
}

// Wrap wraps an http.Handler with authentication.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skipper != nil && m.Skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.parseRequest(r)
		switch {
		case err == ErrMissingToken:
			next.ServeHTTP(w, r)
		case err != nil:
			m.OnError(w, r, err)
		default:
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		}
	})
}

func (m Middleware) parseRequest(r *http.Request) (*Claims, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return nil, ErrMissingToken
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, ErrInvalidToken
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	if token == "" {
		return nil, ErrInvalidToken
	}
	return Parse(token, m.Config)
}
