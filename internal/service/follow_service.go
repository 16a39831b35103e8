package service

import (
	"context"
	"log/slog"

	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/observability"
	"yatube/internal/repository"
)

// FollowService manages who reads whom.
type FollowService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
}

func NewFollowService(userRepo repository.UserRepository, followRepo repository.FollowRepository) *FollowService {
	return &FollowService{userRepo: userRepo, followRepo: followRepo}
}

// Follow subscribes followerID to username. Following yourself or someone you
// already follow changes nothing.
func (s *FollowService) Follow(ctx context.Context, followerID uint, username string) error {
	if followerID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if author.ID == followerID {
		middleware.Logger.DebugContext(ctx, "ignoring self-follow", slog.String("username", username))
		return nil
	}

	created, err := s.followRepo.Create(ctx, followerID, author.ID)
	if err != nil {
		return err
	}
	if created {
		observability.FollowChanges.WithLabelValues("follow").Inc()
	}
	return nil
}

// Unfollow removes the subscription if there is one.
func (s *FollowService) Unfollow(ctx context.Context, followerID uint, username string) error {
	if followerID == 0 {
		return models.NewUnauthorizedError("Authentication required")
	}
	author, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return err
	}

	removed, err := s.followRepo.Delete(ctx, followerID, author.ID)
	if err != nil {
		return err
	}
	if removed > 0 {
		observability.FollowChanges.WithLabelValues("unfollow").Inc()
	}
	return nil
}

// IsFollowing reports whether followerID follows authorID.
func (s *FollowService) IsFollowing(ctx context.Context, followerID, authorID uint) (bool, error) {
	if followerID == 0 || followerID == authorID {
		return false, nil
	}
	return s.followRepo.Exists(ctx, followerID, authorID)
}
