package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"educhat/internal/authz"
	"educhat/internal/models"
)

// ListConversations honors the hierarchical filter: agents only see
// conversations assigned to them, other roles see the full inbox.
func ListConversations(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := db.Order("updated_at desc").Limit(200)
		if f := authz.FilterFromContext(r.Context()); f.AssignedUserID != nil {
			q = q.Where("assigned_user_id = ?", *f.AssignedUserID)
		}
		if ch := r.URL.Query().Get("channel"); ch != "" {
			q = q.Where("channel = ?", ch)
		}
		var convs []models.Conversation
		_ = q.Find(&convs).Error
		respondJSON(w, convs)
	}
}

func GetConversation(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var conv models.Conversation
		if err := db.First(&conv, "id = ?", id).Error; err != nil {
			respondError(w, http.StatusNotFound, "Conversa não encontrada")
			return
		}
		respondJSON(w, conv)
	}
}
