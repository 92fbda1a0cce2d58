package handlers

import (
	"encoding/json"
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

func ListRoles(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var roles []models.Role
		_ = db.Order("name").Find(&roles).Error
		respondJSON(w, roles)
	}
}

type roleReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func CreateRole(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req roleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		if req.Name == nil || *req.Name == "" {
			respondError(w, http.StatusBadRequest, "Nome é obrigatório")
			return
		}
		role := models.Role{Name: *req.Name, IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if err := db.Create(&role).Error; err != nil {
			respondError(w, http.StatusBadRequest, "Não foi possível criar o papel")
			return
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "create", Resource: "papel",
			ResourceID: strconv.FormatUint(uint64(role.ID), 10),
			Details:    map[string]any{"name": role.Name},
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"id": role.ID})
	}
}

func UpdateRole(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req roleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		var role models.Role
		if err := db.First(&role, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Papel não encontrado")
			return
		}
		before := map[string]any{"name": role.Name, "description": role.Description, "is_active": role.IsActive}
		if req.Name != nil && *req.Name != "" {
			role.Name = *req.Name
		}
		if req.Description != nil {
			role.Description = *req.Description
		}
		if req.IsActive != nil {
			role.IsActive = *req.IsActive
		}
		role.UpdatedAt = time.Now()
		if err := db.Save(&role).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if cache != nil {
			cache.Flush(r.Context())
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "update", Resource: "papel",
			ResourceID: id,
			Details: map[string]any{
				"before": before,
				"after":  map[string]any{"name": role.Name, "description": role.Description, "is_active": role.IsActive},
			},
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"updated": true})
	}
}

func ListRolePermissions(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var perms []models.Permission
		err := db.
			Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
			Where("role_permissions.role_id = ? AND role_permissions.is_active = ?", id, true).
			Order("permissions.name").
			Find(&perms).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		respondJSON(w, perms)
	}
}

type setRolePermissionsReq struct {
	PermissionIDs []uint `json:"permission_ids"`
}

// SetRolePermissions replaces a role's grants. Existing join rows are
// deactivated rather than deleted so revocations stay visible in history.
func SetRolePermissions(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req setRolePermissionsReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		var role models.Role
		if err := db.First(&role, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Papel não encontrado")
			return
		}
		now := time.Now()
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.RolePermission{}).
				Where("role_id = ?", role.ID).
				Updates(map[string]any{"is_active": false, "updated_at": now}).Error; err != nil {
				return err
			}
			for _, pid := range req.PermissionIDs {
				var existing models.RolePermission
				err := tx.Where("role_id = ? AND permission_id = ?", role.ID, pid).First(&existing).Error
				switch {
				case err == nil:
					if err := tx.Model(&models.RolePermission{}).
						Where("role_id = ? AND permission_id = ?", role.ID, pid).
						Updates(map[string]any{"is_active": true, "updated_at": now}).Error; err != nil {
						return err
					}
				default:
					rp := models.RolePermission{RoleID: role.ID, PermissionID: pid, IsActive: true, CreatedAt: now, UpdatedAt: now}
					if err := tx.Create(&rp).Error; err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if cache != nil {
			cache.Flush(r.Context())
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "update", Resource: "papel_permissoes",
			ResourceID: id,
			Details:    map[string]any{"permission_ids": req.PermissionIDs},
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"updated": true})
	}
}
