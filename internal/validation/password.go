package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Границы длины пароля. Верхняя защищает bcrypt: он учитывает только
// первые 72 байта входа.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ValidatePassword проверяет пароль регистрации: длина в границах,
// есть заглавная, строчная и цифра. Все нарушения собираются в одно
// сообщение, чтобы пользователь исправил пароль за одну попытку.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("пароль должен быть не более %d байт", MaxPasswordLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	var missing []string
	if !hasUpper {
		missing = append(missing, "заглавную букву")
	}
	if !hasLower {
		missing = append(missing, "строчную букву")
	}
	if !hasDigit {
		missing = append(missing, "цифру")
	}
	if len(missing) > 0 {
		return fmt.Errorf("пароль должен содержать %s", strings.Join(missing, ", "))
	}

	return nil
}
