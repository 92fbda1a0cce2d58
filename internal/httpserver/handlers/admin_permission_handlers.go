package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/authz"
	"educhat/internal/models"
)

func ListPermissions(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var perms []models.Permission
		_ = db.Order("category, name").Find(&perms).Error
		respondJSON(w, perms)
	}
}

type permissionReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Category    *string `json:"category"`
	IsActive    *bool   `json:"is_active"`
}

func CreatePermission(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req permissionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		if req.Name == nil {
			respondError(w, http.StatusBadRequest, "Nome é obrigatório")
			return
		}
		// Permission names follow the resource:action convention.
		parts := strings.SplitN(*req.Name, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			respondError(w, http.StatusBadRequest, "Nome deve seguir o formato recurso:acao")
			return
		}
		p := models.Permission{
			Name: *req.Name, Resource: parts[0], Action: parts[1],
			IsActive: true, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if err := db.Create(&p).Error; err != nil {
			respondError(w, http.StatusBadRequest, "Não foi possível criar a permissão")
			return
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "create", Resource: "permissao",
			ResourceID: strconv.FormatUint(uint64(p.ID), 10),
			Details:    map[string]any{"name": p.Name, "category": p.Category},
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"id": p.ID})
	}
}

func UpdatePermission(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req permissionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		var p models.Permission
		if err := db.First(&p, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Permissão não encontrada")
			return
		}
		before := map[string]any{"description": p.Description, "category": p.Category, "is_active": p.IsActive}
		if req.Description != nil {
			p.Description = *req.Description
		}
		if req.Category != nil {
			p.Category = *req.Category
		}
		if req.IsActive != nil {
			p.IsActive = *req.IsActive
		}
		p.UpdatedAt = time.Now()
		if err := db.Save(&p).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if cache != nil {
			cache.Flush(r.Context())
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "update", Resource: "permissao",
			ResourceID: id,
			Details: map[string]any{
				"before": before,
				"after":  map[string]any{"description": p.Description, "category": p.Category, "is_active": p.IsActive},
			},
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"updated": true})
	}
}
