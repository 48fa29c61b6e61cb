// Package auth guards the admin surface with a shared token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

// CookieName holds the admin token in the browser.
const CookieName = "admin_token"

const cookieMaxAge = 7 * 24 * time.Hour

// TokenFromRequest returns the admin token from the cookie or a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Valid compares got against the configured token in constant time. An empty
// configured token never matches.
func Valid(token, got string) bool {
	if token == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(got)) == 1
}

// RequireAdmin is chi middleware that rejects requests without the admin token.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Valid(token, TokenFromRequest(r)) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"authentication required"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Login handles POST /api/admin/login with a form field "password". A match
// sets the admin cookie and redirects to the log view.
func Login(token string, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.PostFormValue("password")
		if !Valid(token, password) {
			http.Redirect(w, r, "/admin/login?error=invalid", http.StatusSeeOther)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    password,
			Path:     "/",
			MaxAge:   int(cookieMaxAge.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/admin/logs", http.StatusSeeOther)
	}
}

// Logout clears the admin cookie.
func Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}
