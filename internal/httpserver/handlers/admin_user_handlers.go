package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/authz"
	"educhat/internal/models"
)

func ListUsers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var users []models.User
		_ = db.Order("created_at desc").Find(&users).Error
		respondJSON(w, users)
	}
}

type userReq struct {
	Name         *string  `json:"name"`
	Email        *string  `json:"email"`
	Password     *string  `json:"password"`
	Role         *string  `json:"role"`
	RoleID       *uint    `json:"role_id"`
	DataKey      *string  `json:"data_key"`
	Channels     []string `json:"channels"`
	Macrosetores []string `json:"macrosetores"`
	IsActive     *bool    `json:"is_active"`
	Status       *string  `json:"status"`
}

func CreateUser(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		if req.Name == nil || req.Email == nil || req.Password == nil {
			respondError(w, http.StatusBadRequest, "Nome, email e senha são obrigatórios")
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondError(w, http.StatusBadRequest, "Senha muito curta")
			return
		}
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		u := models.User{
			Name: *req.Name, Email: *req.Email, PasswordHash: hash,
			Role: models.RoleAtendente, IsActive: true, Status: "ativo",
			Channels: models.StringList{}, Macrosetores: models.StringList{},
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.RoleID != nil {
			u.RoleID = req.RoleID
		}
		if req.DataKey != nil {
			u.DataKey = *req.DataKey
		}
		if req.Channels != nil {
			u.Channels = models.StringList(req.Channels)
		}
		if req.Macrosetores != nil {
			u.Macrosetores = models.StringList(req.Macrosetores)
		}
		if err := db.Create(&u).Error; err != nil {
			respondError(w, http.StatusBadRequest, "Não foi possível criar o usuário")
			return
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "create", Resource: "usuario",
			ResourceID: strconv.FormatUint(uint64(u.ID), 10),
			Details:    map[string]any{"name": u.Name, "email": u.Email, "role": u.Role},
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"id": u.ID})
	}
}

func UpdateUser(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req userReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		var u models.User
		if err := db.First(&u, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		before := map[string]any{"role": u.Role, "role_id": u.RoleID, "is_active": u.IsActive, "status": u.Status}
		if req.Name != nil {
			u.Name = *req.Name
		}
		if req.Email != nil {
			u.Email = *req.Email
		}
		if req.Password != nil && *req.Password != "" {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Senha muito curta")
				return
			}
			u.PasswordHash = hash
		}
		if req.Role != nil {
			u.Role = *req.Role
		}
		if req.RoleID != nil {
			u.RoleID = req.RoleID
		}
		if req.DataKey != nil {
			u.DataKey = *req.DataKey
		}
		if req.Channels != nil {
			u.Channels = models.StringList(req.Channels)
		}
		if req.Macrosetores != nil {
			u.Macrosetores = models.StringList(req.Macrosetores)
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.Status != nil {
			u.Status = *req.Status
		}
		u.UpdatedAt = time.Now()
		if err := db.Save(&u).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if cache != nil {
			cache.InvalidateUser(r.Context(), u.ID)
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "update", Resource: "usuario",
			ResourceID: id,
			Details: map[string]any{
				"before": before,
				"after":  map[string]any{"role": u.Role, "role_id": u.RoleID, "is_active": u.IsActive, "status": u.Status},
			},
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"updated": true})
	}
}

// DeactivateUser soft-disables a user; accounts are never hard-deleted.
func DeactivateUser(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		res := db.Model(&models.User{}).Where("id = ?", id).
			Updates(map[string]any{"is_active": false, "status": "inativo", "is_online": false})
		if res.Error != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if res.RowsAffected == 0 {
			respondError(w, http.StatusNotFound, "Usuário não encontrado")
			return
		}
		if cache != nil {
			if uid, err := strconv.ParseUint(id, 10, 64); err == nil {
				cache.InvalidateUser(r.Context(), uint(uid))
			}
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "deactivate", Resource: "usuario",
			ResourceID: id,
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"deactivated": true})
	}
}
