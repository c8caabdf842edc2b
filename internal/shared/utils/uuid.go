package utils

import "github.com/google/uuid"

// NewUUID генерирует новый UUID v4
func NewUUID() string {
	return uuid.New().String()
}

// IsValidUUID проверяет, что строка является корректным UUID
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
