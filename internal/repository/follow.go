package repository

import (
	"context"

	"yatube/internal/models"

	"gorm.io/gorm"
)

// FollowRepository manages follower -> author edges.
type FollowRepository interface {
	// Create adds the edge and reports whether it was new. An existing edge
	// is not an error.
	Create(ctx context.Context, userID, authorID uint) (bool, error)
	// Delete removes the edge and reports how many rows went away.
	Delete(ctx context.Context, userID, authorID uint) (int64, error)
	Exists(ctx context.Context, userID, authorID uint) (bool, error)
	CountFollowers(ctx context.Context, authorID uint) (int64, error)
}

type followRepository struct {
	db *gorm.DB
}

func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, userID, authorID uint) (bool, error) {
	follow := models.Follow{UserID: userID, AuthorID: authorID}
	err := r.db.WithContext(ctx).Omit("User", "Author").Create(&follow).Error
	switch {
	case err == nil:
		return true, nil
	case isUniqueViolation(err):
		return false, nil
	default:
		return false, models.NewInternalError(err)
	}
}

func (r *followRepository) Delete(ctx context.Context, userID, authorID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *followRepository) Exists(ctx context.Context, userID, authorID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *followRepository) CountFollowers(ctx context.Context, authorID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Follow{}).Where("author_id = ?", authorID).Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
