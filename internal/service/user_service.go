package service

import (
	"context"
	"errors"
	"strings"

	"yatube/internal/models"
	"yatube/internal/repository"
	"yatube/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const (
	msgUsernameTaken    = "Пользователь с таким именем уже существует."
	msgInvalidLogin     = "Пожалуйста, введите правильные имя пользователя и пароль. Оба поля могут быть чувствительны к регистру."
	nonFieldErrorsField = "__all__"
)

// dummyHash keeps the timing of unknown-user logins close to wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("yatube-dummy-password"), bcrypt.DefaultCost)

type UserService struct {
	userRepo repository.UserRepository
	cost     int
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, cost: bcrypt.DefaultCost}
}

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func (s *UserService) WithBcryptCost(cost int) *UserService {
	s.cost = cost
	return s
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.userRepo.GetByUsername(ctx, username)
}

// Signup validates the form and creates the user with a bcrypt password hash.
func (s *UserService) Signup(ctx context.Context, form validation.SignupForm) (*models.User, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if errs := validation.Check(&form); errs != nil {
		return nil, models.NewFormError(errs)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:  form.Username,
		Email:     form.Email,
		FirstName: strings.TrimSpace(form.FirstName),
		LastName:  strings.TrimSpace(form.LastName),
		Password:  string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return nil, models.NewFormError(map[string]string{"username": msgUsernameTaken})
		}
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials and returns the user.
func (s *UserService) Authenticate(ctx context.Context, form validation.LoginForm) (*models.User, error) {
	form.Username = strings.TrimSpace(form.Username)
	if errs := validation.Check(&form); errs != nil {
		return nil, models.NewFormError(errs)
	}

	user, err := s.userRepo.GetByUsername(ctx, form.Username)
	if err != nil {
		if !models.IsCode(err, models.CodeNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(form.Password))
		return nil, invalidLogin()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(form.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, invalidLogin()
		}
		return nil, models.NewInternalError(err)
	}
	return user, nil
}

func invalidLogin() error {
	return models.NewFormError(map[string]string{nonFieldErrorsField: msgInvalidLogin})
}
