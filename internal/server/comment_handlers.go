package server

import (
	"yatube/internal/models"
	"yatube/internal/service"
	"yatube/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// AddComment handles POST /posts/:id/comment/. Invalid comments are dropped
// and the caller is sent back to the post either way.
// @Summary Comment on a post
// @Tags comments
// @Accept x-www-form-urlencoded,json
// @Param id path int true "Post ID"
// @Param text formData string true "Comment text"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comment/ [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var form validation.CommentForm
	if err := c.BodyParser(&form); err != nil {
		return redirect(c, postURL(id))
	}

	_, err = s.commentService.Add(c.UserContext(), service.AddCommentInput{
		PostID:   id,
		AuthorID: currentUserID(c),
		Form:     form,
	})
	if err != nil && !models.IsCode(err, models.CodeValidation) {
		return respondError(c, err)
	}
	return redirect(c, postURL(id))
}
