package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware проверяет статический код доступа. Код принимается либо в
// заголовке X-Access-Code, либо как Bearer-токен. Пустой настроенный код
// отключает проверку полностью (локальная разработка).
func Middleware(accessCode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if accessCode == "" {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractCode(r)
			if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(accessCode)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "invalid access code"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractCode(r *http.Request) string {
	if code := r.Header.Get("X-Access-Code"); code != "" {
		return code
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
