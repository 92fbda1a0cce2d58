package activity

import (
	"context"
	"net/http"
	"time"

	"educhat/internal/audit"
	"educhat/internal/auth"
	"educhat/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Tracker stamps user activity and drives the inactivity timeout.
type Tracker struct {
	db   *gorm.DB
	mon  *Monitor
	sink audit.Sink
	lg   *zap.SugaredLogger
}

func NewTracker(db *gorm.DB, mon *Monitor, sink audit.Sink, lg *zap.SugaredLogger) *Tracker {
	return &Tracker{db: db, mon: mon, sink: sink, lg: lg}
}

func (t *Tracker) Monitor() *Monitor {
	return t.mon
}

// UpdateLastActivity fires the timestamp write on a separate goroutine so
// the request path never waits on it, and re-arms the inactivity timer.
func (t *Tracker) UpdateLastActivity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.FromContext(r.Context())
			if claims.Authenticated() {
				go t.touch(claims.UserID)
				t.mon.ResetTimer(claims.UserID, t.expire)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (t *Tracker) touch(userID uint) {
	now := time.Now()
	err := t.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{"last_activity_at": now, "is_online": true}).Error
	if err != nil {
		t.lg.Errorw("activity update failed", "user_id", userID, "error", err)
	}
}

// expire revokes the user's open sessions once the inactivity window
// lapses and marks them offline.
func (t *Tracker) expire(userID uint) {
	ctx := context.Background()
	now := time.Now()
	err := t.db.WithContext(ctx).Model(&models.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
	if err != nil {
		t.lg.Errorw("session revocation failed", "user_id", userID, "error", err)
	}
	err = t.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("is_online", false).Error
	if err != nil {
		t.lg.Errorw("offline flag update failed", "user_id", userID, "error", err)
	}
	uid := userID
	t.sink.Record(ctx, audit.Entry{
		UserID:   &uid,
		Action:   "session_expired",
		Resource: "sessao",
		Details:  map[string]any{"motivo": "inatividade"},
	})
	t.lg.Infow("session expired for inactivity", "user_id", userID)
}
