package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strings"

	"yatube/internal/middleware"
	"yatube/internal/models"
	"yatube/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint. Anything else
// is answered with 404, the same as a missing post.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Post", c.Params(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// respondError answers with the status that matches the error code.
func respondError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, models.StatusFor(err), err)
}

// FormErrorResponse is the 400 body of an invalid form submission.
type FormErrorResponse struct {
	models.ErrorResponse
	Form *service.FormDescriptor `json:"form,omitempty"`
}

// respondInvalidForm returns 400 with the field errors and the form to
// re-render.
func respondInvalidForm(c *fiber.Ctx, err error, form *service.FormDescriptor) error {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusBadRequest).JSON(FormErrorResponse{
		ErrorResponse: models.ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Fields: appErr.Fields,
		},
		Form: form,
	})
}

func currentUserID(c *fiber.Ctx) uint {
	uid, _ := middleware.UserID(c)
	return uid
}

func redirect(c *fiber.Ctx, location string) error {
	return c.Redirect(location, fiber.StatusFound)
}

func postURL(id uint) string {
	return fmt.Sprintf("/posts/%d/", id)
}

func profileURL(username string) string {
	return "/profile/" + url.PathEscape(username) + "/"
}

// safeNext accepts only local absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// readImage returns the uploaded "image" file of a multipart request, or nil
// when the request carries none.
func readImage(c *fiber.Ctx) (*service.ImageInput, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError("Invalid multipart body")
	}
	files := form.File["image"]
	if len(files) == 0 || files[0].Filename == "" {
		return nil, nil
	}
	return readFileHeader(files[0])
}

func readFileHeader(fh *multipart.FileHeader) (*service.ImageInput, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &service.ImageInput{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

// formValues flattens a bound form for re-rendering.
func formValues(pairs ...string) map[string]string {
	values := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		values[pairs[i]] = pairs[i+1]
	}
	return values
}
