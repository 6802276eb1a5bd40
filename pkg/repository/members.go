package repository

import (
	"context"
	"fmt"

	"github.com/example/roomservice/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// HasGrant reports whether userID is staff of hotelID.
func (r *MembershipRepository) HasGrant(ctx context.Context, userID, hotelID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.HotelMember{}).
		Where("user_id = ? AND hotel_id = ?", userID, hotelID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check grant of %s on hotel %s: %w", userID, hotelID, err)
	}
	return count > 0, nil
}

// Grant adds member. Granting the same user on the same hotel again is a
// no-op.
func (r *MembershipRepository) Grant(ctx context.Context, member *models.HotelMember) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(member).Error
}
