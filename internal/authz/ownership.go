package authz

import (
	"context"
	"fmt"
	"strconv"

	"educhat/internal/models"

	"gorm.io/gorm"
)

// ConversationOwnership verifies that a conversation is assigned to the
// requesting user. Other resource types plug in their own verifier.
type ConversationOwnership struct {
	db *gorm.DB
}

func NewConversationOwnership(db *gorm.DB) *ConversationOwnership {
	return &ConversationOwnership{db: db}
}

func (v *ConversationOwnership) VerifyOwnership(ctx context.Context, userID uint, resourceID string) (bool, error) {
	id, err := strconv.ParseUint(resourceID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("invalid resource id %q: %w", resourceID, err)
	}
	var n int64
	err = v.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND assigned_user_id = ?", id, userID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
