package server

import (
	"yatube/internal/models"
	"yatube/internal/service"
	"yatube/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// PostDetail handles GET /posts/:id/
// @Summary Post with its comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.PostDetail
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/ [get]
func (s *Server) PostDetail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	detail, err := s.postService.Detail(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// PostCreateForm handles GET /create/
// @Summary Empty post form
// @Tags posts
// @Produce json
// @Success 200 {object} object{form=service.FormDescriptor}
// @Router /create/ [get]
func (s *Server) PostCreateForm(c *fiber.Ctx) error {
	form, err := s.postService.NewPostForm(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"form": form})
}

// PostCreate handles POST /create/
// @Summary Publish a post
// @Tags posts
// @Accept x-www-form-urlencoded,mpfd,json
// @Produce json
// @Param text formData string true "Post text"
// @Param group formData int false "Group ID"
// @Param image formData file false "Image"
// @Success 302
// @Failure 400 {object} FormErrorResponse
// @Router /create/ [post]
func (s *Server) PostCreate(c *fiber.Ctx) error {
	ctx := c.UserContext()
	uid := currentUserID(c)

	var form validation.PostForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	image, err := readImage(c)
	if err != nil {
		return respondError(c, err)
	}

	_, err = s.postService.Create(ctx, service.CreatePostInput{
		AuthorID: uid,
		Form:     form,
		Image:    image,
	})
	if err != nil {
		if !models.IsCode(err, models.CodeValidation) {
			return respondError(c, err)
		}
		rendered, ferr := s.postService.PostForm(ctx, postFormValues(form), models.FieldErrors(err))
		if ferr != nil {
			return respondError(c, ferr)
		}
		return respondInvalidForm(c, err, rendered)
	}

	author, err := s.userService.GetUserByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return redirect(c, profileURL(author.Username))
}

// PostEditForm handles GET /posts/:id/edit/
// @Summary Prefilled edit form
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{form=service.FormDescriptor}
// @Success 302 "Caller is not the author"
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/edit/ [get]
func (s *Server) PostEditForm(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	editor, err := s.postService.EditForm(c.UserContext(), id, currentUserID(c))
	if err != nil {
		if models.IsCode(err, models.CodeForbidden) {
			return redirect(c, postURL(id))
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"form": editor.Form})
}

// PostEdit handles POST /posts/:id/edit/
// @Summary Edit a post
// @Tags posts
// @Accept x-www-form-urlencoded,mpfd,json
// @Produce json
// @Param id path int true "Post ID"
// @Param text formData string true "Post text"
// @Param group formData int false "Group ID"
// @Param image formData file false "Replacement image"
// @Success 302
// @Failure 400 {object} FormErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/edit/ [post]
func (s *Server) PostEdit(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	// Non-authors are sent back to the post whatever they submitted.
	post, err := s.postService.Editable(ctx, id, currentUserID(c))
	switch {
	case models.IsCode(err, models.CodeForbidden):
		return redirect(c, postURL(id))
	case err != nil:
		return respondError(c, err)
	}

	var form validation.PostForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	image, err := readImage(c)
	if err != nil {
		return respondError(c, err)
	}

	_, err = s.postService.Edit(ctx, service.EditPostInput{
		PostID:   id,
		EditorID: currentUserID(c),
		Post:     post,
		Form:     form,
		Image:    image,
	})
	switch {
	case err == nil:
		return redirect(c, postURL(id))
	case models.IsCode(err, models.CodeForbidden):
		return redirect(c, postURL(id))
	case models.IsCode(err, models.CodeValidation):
		rendered, ferr := s.postService.PostForm(ctx, postFormValues(form), models.FieldErrors(err))
		if ferr != nil {
			return respondError(c, ferr)
		}
		rendered.IsEdit = true
		rendered.PostID = id
		return respondInvalidForm(c, err, rendered)
	default:
		return respondError(c, err)
	}
}

func postFormValues(form validation.PostForm) map[string]string {
	return formValues("text", form.Text, "group", string(form.Group))
}
