package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Messages shown next to form fields.
const (
	MsgRequired      = "Обязательное поле."
	MsgInvalidChoice = "Выберите корректный вариант. Вашего варианта нет среди допустимых значений."
	MsgInvalidImage  = "Загрузите правильное изображение. Файл, который вы загрузили, поврежден или не является изображением."
)

// PostForm is the create/edit post submission. Group carries the selected
// group id; empty means no group.
type PostForm struct {
	Text  string      `form:"text" json:"text" validate:"notblank"`
	Group GroupChoice `form:"group" json:"group" validate:"omitempty,numeric"`
}

// GroupChoice is a submitted group id. Forms send it as text; JSON clients
// may send a number, a string or null.
type GroupChoice string

// UnmarshalText keeps the form value as sent.
func (g *GroupChoice) UnmarshalText(text []byte) error {
	*g = GroupChoice(text)
	return nil
}

// UnmarshalJSON accepts 3, "3" and null. Any other JSON value is an error.
func (g *GroupChoice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*g = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*g = GroupChoice(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("group: %w", err)
		}
		*g = GroupChoice(n.String())
	}
	return nil
}

// CommentForm is the add-comment submission.
type CommentForm struct {
	Text string `form:"text" json:"text" validate:"notblank"`
}

// SignupForm registers a new user.
type SignupForm struct {
	Username  string `form:"username" json:"username" validate:"username"`
	Email     string `form:"email" json:"email" validate:"omitempty,max=254,emailaddr"`
	FirstName string `form:"first_name" json:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" json:"last_name" validate:"max=150"`
	Password  string `form:"password" json:"password" validate:"password"`
}

// LoginForm authenticates an existing user. Next is where to go afterwards.
type LoginForm struct {
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
	Next     string `form:"next" json:"next"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("form"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		mustRegister(v, "username", func(fl validator.FieldLevel) bool {
			return ValidateUsername(fl.Field().String()) == nil
		})
		mustRegister(v, "emailaddr", func(fl validator.FieldLevel) bool {
			return ValidateEmail(fl.Field().String()) == nil
		})
		mustRegister(v, "password", func(fl validator.FieldLevel) bool {
			return passwordError(fl) == nil
		})
		validate = v
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

// passwordError re-runs the password rules against the sibling username so
// the caller gets the specific reason.
func passwordError(fl validator.FieldLevel) error {
	username := ""
	if parent := fl.Parent(); parent.Kind() == reflect.Struct {
		if f := parent.FieldByName("Username"); f.IsValid() && f.Kind() == reflect.String {
			username = f.String()
		}
	}
	return ValidatePassword(fl.Field().String(), username)
}

// Check validates form and returns field errors keyed by form field name, or
// nil when the form is valid.
func Check(form any) map[string]string {
	err := Validator().Struct(form)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"__all__": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		out[fe.Field()] = message(form, fe)
	}
	return out
}

func message(form any, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return MsgRequired
	case "max":
		return fmt.Sprintf("Убедитесь, что это значение содержит не более %s символов.", fe.Param())
	case "min":
		return fmt.Sprintf("Убедитесь, что это значение содержит не менее %s символов.", fe.Param())
	case "numeric":
		return MsgInvalidChoice
	case "emailaddr":
		return ValidateEmail(fmt.Sprint(fe.Value())).Error()
	case "username":
		return ValidateUsername(fmt.Sprint(fe.Value())).Error()
	case "password":
		username := ""
		if f, ok := form.(*SignupForm); ok {
			username = f.Username
		} else if f, ok := form.(SignupForm); ok {
			username = f.Username
		}
		if err := ValidatePassword(fmt.Sprint(fe.Value()), username); err != nil {
			return err.Error()
		}
	}
	return "Введите правильное значение."
}
