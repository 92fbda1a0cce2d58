package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"educhat/internal/activity"
	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/models"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(db *gorm.DB, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		var u models.User
		if err := db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error; err != nil {
			rec.Record(r.Context(), audit.Entry{
				Action: "login", Resource: "sessao",
				Details:   map[string]any{"email": req.Email},
				IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
				Result: audit.ResultFailure,
			})
			respondError(w, http.StatusUnauthorized, "Credenciais inválidas")
			return
		}
		if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
			uid := u.ID
			rec.Record(r.Context(), audit.Entry{
				UserID: &uid, Action: "login", Resource: "sessao",
				IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
				Result: audit.ResultFailure,
			})
			respondError(w, http.StatusUnauthorized, "Credenciais inválidas")
			return
		}
		if !u.IsActive {
			uid := u.ID
			rec.Record(r.Context(), audit.Entry{
				UserID: &uid, Action: "login", Resource: "sessao",
				IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
				Result: audit.ResultUnauthorized,
			})
			respondError(w, http.StatusForbidden, "Usuário inativo")
			return
		}

		jti := uuid.NewString()
		now := time.Now()
		sess := models.Session{JTI: jti, UserID: u.ID, ExpiresAt: now.Add(auth.TokenTTL()), CreatedAt: now}
		if err := db.Create(&sess).Error; err != nil {
			lg.Errorw("session create failed", "user_id", u.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		tok, err := auth.Sign(u.ID, u.Role, jti)
		if err != nil {
			lg.Errorw("token sign failed", "user_id", u.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		_ = db.Model(&models.User{}).Where("id = ?", u.ID).
			Updates(map[string]any{"last_login_at": now, "is_online": true}).Error

		uid := u.ID
		rec.Record(r.Context(), audit.Entry{
			UserID: &uid, Action: "login", Resource: "sessao",
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{
			"token": tok,
			"user":  map[string]any{"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role},
		})
	}
}

func Logout(db *gorm.DB, mon *activity.Monitor, rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		now := time.Now()
		if claims.JWTID != "" {
			err := db.Model(&models.Session{}).Where("jti = ?", claims.JWTID).
				Update("revoked_at", now).Error
			if err != nil {
				lg.Errorw("session revoke failed", "jti", claims.JWTID, "error", err)
			}
		}
		mon.ClearTimer(claims.UserID)
		_ = db.Model(&models.User{}).Where("id = ?", claims.UserID).
			Update("is_online", false).Error
		uid := claims.UserID
		rec.Record(r.Context(), audit.Entry{
			UserID: &uid, Action: "logout", Resource: "sessao",
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var u models.User
		if err := db.First(&u, auth.UserID(r.Context())).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		respondJSON(w, u)
	}
}
