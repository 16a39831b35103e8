// Package validation provides input validation utilities
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxUsernameLength = 150
)

var (
	usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.@+-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
)

// commonPasswords rejects the most obvious choices outright.
var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"qwertyuiop": {},
	"12345678":   {},
	"123456789":  {},
	"iloveyou":   {},
	"sunshine":   {},
	"football":   {},
	"йцукенгш":   {},
}

// ValidatePassword checks length, rejects all-digit and well-known passwords,
// and refuses passwords that contain the username.
func ValidatePassword(password, username string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return fmt.Errorf("Введённый пароль слишком короткий. Он должен содержать как минимум %d символов.", minPasswordLength)
	}
	if n > maxPasswordLength {
		return fmt.Errorf("Пароль не должен превышать %d символов.", maxPasswordLength)
	}

	allDigits := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
			break
		}
	}
	if allDigits {
		return errors.New("Введённый пароль состоит только из цифр.")
	}

	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return errors.New("Введённый пароль слишком широко распространён.")
	}

	if username != "" && strings.Contains(strings.ToLower(password), strings.ToLower(username)) {
		return errors.New("Введённый пароль слишком похож на имя пользователя.")
	}
	return nil
}

// ValidateUsername allows letters, digits and @/./+/-/_ up to 150 characters.
func ValidateUsername(username string) error {
	if username == "" {
		return errors.New("Обязательное поле.")
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return fmt.Errorf("Убедитесь, что это значение содержит не более %d символов.", maxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return errors.New("Введите правильное имя пользователя. Оно может содержать только буквы, цифры и знаки @/./+/-/_.")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return errors.New("Убедитесь, что это значение содержит не более 254 символов.")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("Введите правильный адрес электронной почты.")
	}
	return nil
}
