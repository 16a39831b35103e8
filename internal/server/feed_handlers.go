package server

import (
	"github.com/gofiber/fiber/v2"
)

// Index handles GET /
// @Summary Latest posts
// @Tags posts
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} service.FeedPage
// @Router / [get]
func (s *Server) Index(c *fiber.Ctx) error {
	feed, err := s.postService.Index(c.UserContext(), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// GroupPosts handles GET /group/:slug/
// @Summary Posts of a group
// @Tags posts
// @Produce json
// @Param slug path string true "Group slug"
// @Param page query int false "Page number"
// @Success 200 {object} service.GroupFeed
// @Failure 404 {object} models.ErrorResponse
// @Router /group/{slug}/ [get]
func (s *Server) GroupPosts(c *fiber.Ctx) error {
	feed, err := s.postService.GroupFeed(c.UserContext(), c.Params("slug"), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// Profile handles GET /profile/:username/
// @Summary Author page
// @Tags posts
// @Produce json
// @Param username path string true "Author username"
// @Param page query int false "Page number"
// @Success 200 {object} service.ProfileView
// @Failure 404 {object} models.ErrorResponse
// @Router /profile/{username}/ [get]
func (s *Server) Profile(c *fiber.Ctx) error {
	view, err := s.postService.Profile(c.UserContext(), c.Params("username"), currentUserID(c), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// FollowIndex handles GET /follow/
// @Summary Posts by followed authors
// @Tags follow
// @Produce json
// @Param page query int false "Page number"
// @Success 200 {object} service.FeedPage
// @Success 302
// @Router /follow/ [get]
func (s *Server) FollowIndex(c *fiber.Ctx) error {
	feed, err := s.postService.FollowFeed(c.UserContext(), currentUserID(c), c.Query("page"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}
