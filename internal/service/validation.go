package service

import (
	"regexp"
	"strings"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

const minPasswordLength = 8

// ValidateUsername acepta de 3 a 20 caracteres alfanuméricos ASCII.
func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// ValidatePassword exige al menos 8 caracteres, una mayúscula y un dígito.
func ValidatePassword(password string) bool {
	if len([]rune(password)) < minPasswordLength {
		return false
	}
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasDigit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
