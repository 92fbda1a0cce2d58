package authz

import (
	"context"
	"errors"

	"educhat/internal/models"

	"gorm.io/gorm"
)

// Store is the read side the resolver consults. Missing records come back
// as nil/false with a nil error; only infrastructure failures return errors.
type Store interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	RoleHasPermission(ctx context.Context, roleID uint, permission string) (bool, error)
	FindCustomRule(ctx context.Context, userID uint, permission string) (*models.CustomRule, error)
}

// GormStore resolves users, role grants and custom rules from the
// relational schema.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RoleHasPermission reports whether an active role_permissions row joins
// the role to an active permission with the given name.
func (s *GormStore) RoleHasPermission(ctx context.Context, roleID uint, permission string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Table("role_permissions").
		Joins("JOIN permissions ON permissions.id = role_permissions.permission_id").
		Where("role_permissions.role_id = ? AND role_permissions.is_active = ? AND permissions.name = ? AND permissions.is_active = ?",
			roleID, true, permission, true).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *GormStore) FindCustomRule(ctx context.Context, userID uint, permission string) (*models.CustomRule, error) {
	var rule models.CustomRule
	err := s.db.WithContext(ctx).
		Joins("JOIN permissions ON permissions.id = custom_rules.permission_id").
		Where("custom_rules.user_id = ? AND custom_rules.is_active = ? AND permissions.name = ? AND permissions.is_active = ?",
			userID, true, permission, true).
		First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
