package models

import "time"

// Coarse role tags carried on the user record. RoleAdmin short-circuits
// every permission check, including context scoping.
const (
	RoleAdmin     = "admin"
	RoleGerente   = "gerente"
	RoleAtendente = "atendente"
)

type Role struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a named capability following the resource:action convention,
// e.g. "permissao:gerenciar" or "conversa:ver".
type Permission struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null" json:"name"`
	Resource    string    `gorm:"not null;index" json:"resource"`
	Action      string    `gorm:"not null" json:"action"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RolePermission joins a role to a permission. A grant is revoked by
// flipping IsActive, never by deleting the row, so audit history survives.
type RolePermission struct {
	RoleID       uint      `gorm:"primaryKey;autoIncrement:false" json:"role_id"`
	PermissionID uint      `gorm:"primaryKey;autoIncrement:false" json:"permission_id"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CustomRule grants a single permission to a single user outside their role.
// Conditions, when present, hold {"channels": [...], "macrosetores": [...]}
// and every present field must be satisfied by the request context.
type CustomRule struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"index;not null" json:"user_id"`
	PermissionID uint      `gorm:"index;not null" json:"permission_id"`
	Conditions   JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"conditions"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type User struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string     `gorm:"not null" json:"name"`
	Email          string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"not null" json:"-"`
	Role           string     `gorm:"not null;default:atendente" json:"role"`
	RoleID         *uint      `gorm:"index" json:"role_id,omitempty"`
	DataKey        string     `json:"data_key"`
	Channels       StringList `gorm:"type:jsonb;default:'[]'::jsonb" json:"channels"`
	Macrosetores   StringList `gorm:"type:jsonb;default:'[]'::jsonb" json:"macrosetores"`
	IsActive       bool       `gorm:"not null;default:true" json:"is_active"`
	Status         string     `gorm:"not null;default:ativo" json:"status"`
	IsOnline       bool       `gorm:"not null;default:false" json:"is_online"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AuditLog rows are append-only; nothing in the service updates or deletes them.
type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id,omitempty"`
	Action     string    `gorm:"not null;index" json:"action"`
	Resource   string    `gorm:"not null;index" json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	Channel    string    `json:"channel,omitempty"`
	Macrosetor string    `json:"macrosetor,omitempty"`
	DataKey    string    `json:"data_key,omitempty"`
	Details    JSONB     `gorm:"type:jsonb;default:'{}'::jsonb" json:"details"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Result     string    `gorm:"not null;default:success" json:"result"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

type Session struct {
	JTI       string     `gorm:"primaryKey;size:64" json:"jti"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Conversation is the minimal inbox record the authorization core scopes:
// hierarchical "_proprio" permissions check AssignedUserID ownership and the
// hierarchical filter narrows listings to the assigned agent.
type Conversation struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ContactName    string    `gorm:"not null" json:"contact_name"`
	ContactPhone   string    `gorm:"index" json:"contact_phone"`
	Channel        string    `gorm:"not null;index" json:"channel"`
	Macrosetor     string    `gorm:"index" json:"macrosetor"`
	AssignedUserID *uint     `gorm:"index" json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
