package server

import (
	"log/slog"

	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/service"
	"yatube/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /auth/signup/
// @Summary Register
// @Description Creates the account, signs the user in and redirects to the index.
// @Tags auth
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string false "Email"
// @Param first_name formData string false "First name"
// @Param last_name formData string false "Last name"
// @Param password formData string true "Password"
// @Success 302
// @Failure 400 {object} FormErrorResponse
// @Router /auth/signup/ [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var form validation.SignupForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Signup(c.UserContext(), form)
	if err != nil {
		if models.IsCode(err, models.CodeValidation) {
			rendered := service.SignupFormDescriptor(formValues(
				"username", form.Username,
				"email", form.Email,
				"first_name", form.FirstName,
				"last_name", form.LastName,
			), models.FieldErrors(err))
			return respondInvalidForm(c, err, &rendered)
		}
		return respondError(c, err)
	}

	if err := s.startSession(c, user); err != nil {
		return respondError(c, err)
	}
	middleware.Logger.InfoContext(c.UserContext(), "user signed up", slog.Uint64("user_id", uint64(user.ID)))
	return redirect(c, "/")
}

// LoginPage handles GET /auth/login/
// @Summary Login form
// @Tags auth
// @Produce json
// @Param next query string false "Where to go after login"
// @Success 200 {object} object{form=service.FormDescriptor,next=string}
// @Router /auth/login/ [get]
func (s *Server) LoginPage(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"form": service.LoginFormDescriptor(nil, nil),
		"next": c.Query("next"),
	})
}

// Login handles POST /auth/login/
// @Summary Log in
// @Description Sets the session cookie and redirects to next, or to the index.
// @Tags auth
// @Accept x-www-form-urlencoded,json
// @Produce json
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Param next formData string false "Where to go after login"
// @Success 302
// @Failure 400 {object} FormErrorResponse
// @Router /auth/login/ [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var form validation.LoginForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	next := form.Next
	if next == "" {
		next = c.Query("next")
	}

	user, err := s.userService.Authenticate(c.UserContext(), form)
	if err != nil {
		if models.IsCode(err, models.CodeValidation) {
			rendered := service.LoginFormDescriptor(formValues("username", form.Username), models.FieldErrors(err))
			return respondInvalidForm(c, err, &rendered)
		}
		return respondError(c, err)
	}

	if err := s.startSession(c, user); err != nil {
		return respondError(c, err)
	}
	return redirect(c, safeNext(next))
}

// Logout handles POST /auth/logout/
// @Summary Log out
// @Description Revokes the current token and clears the session cookie.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout/ [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	if id, ok := middleware.CurrentIdentity(c); ok {
		if err := s.auth.Revoke(c.UserContext(), id); err != nil {
			middleware.Logger.WarnContext(c.UserContext(), "token revocation failed", slog.String("error", err.Error()))
		}
	}
	s.auth.ClearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Вы вышли из своей учётной записи."})
}

func (s *Server) startSession(c *fiber.Ctx, user *models.User) error {
	token, expires, err := s.auth.IssueToken(user.ID, user.Username)
	if err != nil {
		return models.NewInternalError(err)
	}
	s.auth.SetSessionCookie(c, token, expires)
	return nil
}
