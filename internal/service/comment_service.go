package service

import (
	"context"
	"log/slog"
	"strings"

	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/observability"
	"yatube/internal/repository"
	"yatube/internal/validation"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
}

type AddCommentInput struct {
	PostID   uint
	AuthorID uint
	Form     validation.CommentForm
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
	}
}

// Add attaches a comment to an existing post. An invalid form yields a
// VALIDATION_ERROR and nothing is stored; callers redirect either way.
func (s *CommentService) Add(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}

	in.Form.Text = strings.TrimSpace(in.Form.Text)
	if errs := validation.Check(&in.Form); errs != nil {
		observability.CommentsSubmitted.WithLabelValues("dropped").Inc()
		middleware.Logger.DebugContext(ctx, "comment dropped",
			slog.Uint64("post_id", uint64(post.ID)),
			slog.Any("fields", errs),
		)
		return nil, models.NewFormError(errs)
	}

	comment := &models.Comment{
		Text:     in.Form.Text,
		PostID:   post.ID,
		AuthorID: in.AuthorID,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentsSubmitted.WithLabelValues("created").Inc()
	return comment, nil
}
