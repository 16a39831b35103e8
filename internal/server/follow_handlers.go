package server

import (
	"github.com/gofiber/fiber/v2"
)

const followURL = "/follow/"

// ProfileFollow handles GET /profile/:username/follow/
// @Summary Follow an author
// @Tags follow
// @Param username path string true "Author username"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/follow/ [get]
func (s *Server) ProfileFollow(c *fiber.Ctx) error {
	if err := s.followService.Follow(c.UserContext(), currentUserID(c), c.Params("username")); err != nil {
		return respondError(c, err)
	}
	return redirect(c, followURL)
}

// ProfileUnfollow handles GET /profile/:username/unfollow/
// @Summary Unfollow an author
// @Tags follow
// @Param username path string true "Author username"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/unfollow/ [get]
func (s *Server) ProfileUnfollow(c *fiber.Ctx) error {
	if err := s.followService.Unfollow(c.UserContext(), currentUserID(c), c.Params("username")); err != nil {
		return respondError(c, err)
	}
	return redirect(c, followURL)
}
