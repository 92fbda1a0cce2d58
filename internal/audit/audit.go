package audit

import (
	"context"
	"encoding/json"
	"time"

	"educhat/internal/metrics"
	"educhat/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Results recorded on audit entries.
const (
	ResultSuccess      = "success"
	ResultFailure      = "failure"
	ResultUnauthorized = "unauthorized"
)

// Actions written by the authorization middleware.
const (
	ActionAccessDenied     = "access_denied"
	ActionPermissionDenied = "permission_denied"
	ActionAccessGranted    = "access_granted"
)

// Entry is one authorization decision or admin action to be persisted.
// UserID stays nil for unauthenticated attempts.
type Entry struct {
	UserID     *uint
	Action     string
	Resource   string
	ResourceID string
	Channel    string
	Macrosetor string
	DataKey    string
	Details    map[string]any
	IPAddress  string
	UserAgent  string
	Result     string
}

// Sink receives audit entries. Implementations must never propagate a
// write failure back to the caller.
type Sink interface {
	Record(ctx context.Context, e Entry)
}

// Recorder persists audit entries to the audit_logs table, append-only.
type Recorder struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewRecorder(db *gorm.DB, lg *zap.SugaredLogger) *Recorder {
	return &Recorder{db: db, lg: lg}
}

// Record writes the entry, defaulting Result to success. Failures are
// counted and logged but otherwise dropped so the response that triggered
// the entry is never affected.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.Result == "" {
		e.Result = ResultSuccess
	}
	details := models.JSONB("{}")
	if e.Details != nil {
		if b, err := json.Marshal(e.Details); err == nil {
			details = models.JSONB(b)
		} else {
			r.lg.Errorw("audit details marshal failed", "action", e.Action, "error", err)
		}
	}
	row := models.AuditLog{
		UserID:     e.UserID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Channel:    e.Channel,
		Macrosetor: e.Macrosetor,
		DataKey:    e.DataKey,
		Details:    details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Result:     e.Result,
		CreatedAt:  time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		metrics.AuditWriteFailures.Inc()
		r.lg.Errorw("audit write failed", "action", e.Action, "resource", e.Resource, "error", err)
	}
}

// QueryFilter narrows and paginates audit log reads.
type QueryFilter struct {
	Page      int
	Limit     int
	UserID    *uint
	Action    string
	Resource  string
	StartDate *time.Time
	EndDate   *time.Time
}

// Row is an audit log entry joined with the acting user's display fields.
type Row struct {
	models.AuditLog
	UserName  string `json:"user_name,omitempty"`
	UserEmail string `json:"user_email,omitempty"`
}

func (r *Recorder) baseQuery(ctx context.Context, f QueryFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Table("audit_logs").
		Joins("LEFT JOIN users ON users.id = audit_logs.user_id")
	if f.UserID != nil {
		q = q.Where("audit_logs.user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("audit_logs.action = ?", f.Action)
	}
	if f.Resource != "" {
		q = q.Where("audit_logs.resource = ?", f.Resource)
	}
	if f.StartDate != nil {
		q = q.Where("audit_logs.created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("audit_logs.created_at <= ?", *f.EndDate)
	}
	return q
}

// Query returns a page of entries, newest first, plus the total match count.
func (r *Recorder) Query(ctx context.Context, f QueryFilter) ([]Row, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	var total int64
	if err := r.baseQuery(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []Row
	err := r.baseQuery(ctx, f).
		Select("audit_logs.*, users.name AS user_name, users.email AS user_email").
		Order("audit_logs.created_at DESC").
		Limit(f.Limit).
		Offset((f.Page - 1) * f.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
