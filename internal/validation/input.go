package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MinUsernameLength         = 3
	MaxUsernameLength         = 30
	MinOrderTitleLength       = 3
	MaxOrderTitleLength       = 200
	MinOrderDescriptionLength = 10
	MaxOrderDescriptionLength = 5000
	MinCoverLetterLength      = 10
	MaxCoverLetterLength      = 2000
	MaxDisputeReasonLength    = 2000
	MaxReviewCommentLength    = 2000
	MinBudget                 = 0.0
	MaxBudget                 = 100000000.0 // 100 миллионов
	MinMessageLength          = 1
	MaxMessageLength          = 5000
)

// ValidateLength проверяет длину строки в рунах.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	emailRegex := regexp.MustCompile(`^[a-z0-9._+-]+$`)
	if !emailRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	domainRegex := regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	if !domainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateUsername проверяет имя пользователя.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("имя пользователя обязательно")
	}

	username = strings.TrimSpace(username)

	if err := ValidateLength("имя пользователя", username, MinUsernameLength, MaxUsernameLength); err != nil {
		return err
	}

	usernameRegex := regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("имя пользователя может содержать только буквы, цифры и подчеркивание")
	}

	if unicode.IsDigit(rune(username[0])) {
		return fmt.Errorf("имя пользователя не может начинаться с цифры")
	}

	return nil
}

// ValidateOrderTitle проверяет заголовок заказа.
func ValidateOrderTitle(title string) error {
	if title == "" {
		return fmt.Errorf("заголовок заказа обязателен")
	}
	return ValidateLength("заголовок заказа", strings.TrimSpace(title), MinOrderTitleLength, MaxOrderTitleLength)
}

// ValidateOrderDescription проверяет описание заказа.
func ValidateOrderDescription(description string) error {
	if description == "" {
		return fmt.Errorf("описание заказа обязательно")
	}
	return ValidateLength("описание заказа", strings.TrimSpace(description), MinOrderDescriptionLength, MaxOrderDescriptionLength)
}

// ValidateCoverLetter проверяет сопроводительное письмо отклика.
func ValidateCoverLetter(coverLetter string) error {
	if coverLetter == "" {
		return fmt.Errorf("сопроводительное письмо обязательно")
	}
	return ValidateLength("сопроводительное письмо", strings.TrimSpace(coverLetter), MinCoverLetterLength, MaxCoverLetterLength)
}

// ValidateBudget проверяет бюджетную вилку заказа.
func ValidateBudget(budgetMin, budgetMax *float64) error {
	if budgetMin != nil {
		if *budgetMin < MinBudget {
			return fmt.Errorf("минимальный бюджет не может быть отрицательным")
		}
		if *budgetMin > MaxBudget {
			return fmt.Errorf("минимальный бюджет не может превышать %.0f", MaxBudget)
		}
	}

	if budgetMax != nil {
		if *budgetMax < MinBudget {
			return fmt.Errorf("максимальный бюджет не может быть отрицательным")
		}
		if *budgetMax > MaxBudget {
			return fmt.Errorf("максимальный бюджет не может превышать %.0f", MaxBudget)
		}
	}

	if budgetMin != nil && budgetMax != nil && *budgetMin > *budgetMax {
		return fmt.Errorf("минимальный бюджет не может быть больше максимального")
	}

	return nil
}

// ValidateDisputeReason проверяет причину открытия спора.
func ValidateDisputeReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("причина спора обязательна")
	}
	return ValidateLength("причина спора", strings.TrimSpace(reason), 0, MaxDisputeReasonLength)
}

// ValidateReviewComment проверяет комментарий отзыва.
func ValidateReviewComment(comment *string) error {
	if comment == nil || *comment == "" {
		return nil
	}
	return ValidateLength("комментарий", strings.TrimSpace(*comment), 0, MaxReviewCommentLength)
}

// ValidateMessageContent проверяет содержимое сообщения чата.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}
	return ValidateLength("сообщение", strings.TrimSpace(content), MinMessageLength, MaxMessageLength)
}
