package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"educhat/internal/models"

	"gorm.io/gorm"
)

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Não autenticado"})
}

// JWTAuth validates the bearer token and its backing session row, then
// attaches Claims to the request context. Downstream authorization
// middleware assumes this has already run.
func JWTAuth(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w)
				return
			}
			raw := strings.TrimPrefix(h, "Bearer ")
			claims, err := Verify(raw)
			if err != nil {
				unauthorized(w)
				return
			}
			var sess models.Session
			if claims.JWTID == "" || db.First(&sess, "jti = ?", claims.JWTID).Error != nil {
				unauthorized(w)
				return
			}
			if sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
