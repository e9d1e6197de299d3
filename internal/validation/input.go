package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Ограничения на пользовательский текст.
const (
	MinJobTitleLength       = 3
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 20
	MaxJobDescriptionLength = 5000
	MaxCommentLength        = 4000
	MaxResolutionNoteLength = 4000
)

// SanitizeText обрезает пробелы и удаляет управляющие символы, кроме переводов строк и табуляции.
func SanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// ValidateLength проверяет длину строки в символах. Нулевая граница не проверяется.
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

// ValidateNonEmpty проверяет, что поле не пустое после очистки.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s обязателен", fieldName)
	}
	return nil
}

// ValidatePercent проверяет процент в диапазоне [min, max].
func ValidatePercent(fieldName string, value, min, max int) error {
	if value < min || value > max {
		return fmt.Errorf("%s должен быть от %d до %d", fieldName, min, max)
	}
	return nil
}
