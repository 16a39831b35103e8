package service

import (
	"context"
	"testing"

	"yatube/internal/models"
	"yatube/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestUserService_SignupAndAuthenticate(t *testing.T) {
	t.Parallel()
	repo := &userRepoStub{}
	svc := NewUserService(repo).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()

	user, err := svc.Signup(ctx, validation.SignupForm{
		Username:  " leo ",
		Email:     "leo@example.com",
		FirstName: "Лев",
		LastName:  "Толстой",
		Password:  "war and peace",
	})
	require.NoError(t, err)
	assert.Equal(t, "leo", user.Username)
	assert.NotEqual(t, "war and peace", user.Password)
	assert.Equal(t, "Лев Толстой", user.FullName())

	got, err := svc.Authenticate(ctx, validation.LoginForm{Username: "leo", Password: "war and peace"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	byID, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "leo", byID.Username)

	byName, err := svc.GetUserByUsername(ctx, "leo")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)
}

func TestUserService_SignupErrors(t *testing.T) {
	t.Parallel()
	repo := &userRepoStub{}
	svc := NewUserService(repo).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()

	_, err := svc.Signup(ctx, validation.SignupForm{Username: "leo", Password: "war and peace"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, validation.SignupForm{Username: "leo", Password: "anna karenina"})
	fields := assertValidationError(t, err)
	assert.Equal(t, msgUsernameTaken, fields["username"])

	_, err = svc.Signup(ctx, validation.SignupForm{Username: "bad name", Password: "1"})
	fields = assertValidationError(t, err)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "password")
	assert.Len(t, repo.users, 1)
}

func TestUserService_AuthenticateRejects(t *testing.T) {
	t.Parallel()
	repo := &userRepoStub{}
	svc := NewUserService(repo).WithBcryptCost(bcrypt.MinCost)
	ctx := context.Background()
	_, err := svc.Signup(ctx, validation.SignupForm{Username: "leo", Password: "war and peace"})
	require.NoError(t, err)

	tests := []struct {
		name string
		form validation.LoginForm
		key  string
	}{
		{"wrong password", validation.LoginForm{Username: "leo", Password: "nope"}, nonFieldErrorsField},
		{"unknown user", validation.LoginForm{Username: "ghost", Password: "war and peace"}, nonFieldErrorsField},
		{"empty", validation.LoginForm{}, "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tt.form)
			fields := assertValidationError(t, err)
			assert.Contains(t, fields, tt.key)
		})
	}

	_, err = svc.Authenticate(ctx, validation.LoginForm{Username: "leo", Password: "nope"})
	assert.Equal(t, msgInvalidLogin, models.FieldErrors(err)[nonFieldErrorsField])
}
