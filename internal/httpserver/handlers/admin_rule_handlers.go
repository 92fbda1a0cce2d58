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

func ListCustomRules(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Order("created_at desc")
		if uid := r.URL.Query().Get("userId"); uid != "" {
			q = q.Where("user_id = ?", uid)
		}
		var rules []models.CustomRule
		_ = q.Find(&rules).Error
		respondJSON(w, rules)
	}
}

type customRuleReq struct {
	UserID       uint                  `json:"user_id"`
	PermissionID uint                  `json:"permission_id"`
	Conditions   *authz.RuleConditions `json:"conditions,omitempty"`
}

func CreateCustomRule(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req customRuleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Requisição inválida")
			return
		}
		if req.UserID == 0 || req.PermissionID == 0 {
			respondError(w, http.StatusBadRequest, "Usuário e permissão são obrigatórios")
			return
		}
		conditions := models.JSONB("{}")
		if req.Conditions != nil {
			b, err := json.Marshal(req.Conditions)
			if err != nil {
				respondError(w, http.StatusBadRequest, "Condições inválidas")
				return
			}
			conditions = models.JSONB(b)
		}
		rule := models.CustomRule{
			UserID: req.UserID, PermissionID: req.PermissionID,
			Conditions: conditions, IsActive: true,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		if err := db.Create(&rule).Error; err != nil {
			respondError(w, http.StatusBadRequest, "Não foi possível criar a regra")
			return
		}
		if cache != nil {
			cache.InvalidateUser(r.Context(), req.UserID)
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "create", Resource: "regra_personalizada",
			ResourceID: strconv.FormatUint(uint64(rule.ID), 10),
			Details: map[string]any{
				"target_user_id": req.UserID,
				"permission_id":  req.PermissionID,
				"conditions":     req.Conditions,
			},
			IPAddress: r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"id": rule.ID})
	}
}

// DeactivateCustomRule revokes a per-user grant without deleting the row.
func DeactivateCustomRule(db *gorm.DB, rec *audit.Recorder, cache *authz.DecisionCache, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var rule models.CustomRule
		if err := db.First(&rule, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Regra não encontrada")
			return
		}
		err := db.Model(&models.CustomRule{}).Where("id = ?", rule.ID).
			Updates(map[string]any{"is_active": false, "updated_at": time.Now()}).Error
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if cache != nil {
			cache.InvalidateUser(r.Context(), rule.UserID)
		}
		actor := auth.UserID(r.Context())
		rec.Record(r.Context(), audit.Entry{
			UserID: &actor, Action: "deactivate", Resource: "regra_personalizada",
			ResourceID: id,
			Details:    map[string]any{"target_user_id": rule.UserID},
			IPAddress:  r.RemoteAddr, UserAgent: r.UserAgent(),
		})
		respondJSON(w, map[string]any{"deactivated": true})
	}
}
