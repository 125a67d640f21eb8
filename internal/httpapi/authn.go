package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rfphub.org/internal/auth"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	sessionCookie = "session"
)

// withAuth authenticates the request when a token is present and then
// applies the access policy. Browser-facing paths get redirects; API
// paths under /v1 get JSON status codes.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		var claims *auth.Claims
		if token != "" {
			var err error
			claims, err = auth.ParseAndValidate(token)
			if err != nil {
				if isAPIPath(r.URL.Path) && !auth.IsPublicPath(r.URL.Path) {
					writeError(w, r, http.StatusUnauthorized, "invalid token")
					return
				}
				// Stale browser session: drop the cookie and continue
				// anonymously so the policy redirects to /login.
				clearSessionCookie(w)
				claims = nil
			}
		}

		decision := auth.Decide(r.URL.Path, claims)
		if !decision.Allow {
			if isAPIPath(r.URL.Path) {
				if claims == nil {
					writeError(w, r, http.StatusUnauthorized, "authentication required")
				} else {
					writeError(w, r, http.StatusForbidden, "access denied")
				}
				return
			}
			http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
			return
		}

		ctx := r.Context()
		if claims != nil {
			ctx = auth.ContextWithClaims(ctx, claims)
			ctx = auth.ContextWithToken(ctx, token)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards admin-only API handlers. Returns false after
// writing the error response when the caller is not an Admin.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return false
	}
	if claims.Type != auth.TypeAdmin {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

func extractToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if token, err := extractBearerToken(header); err == nil {
			return token
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/v1/")
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
