package utils

import (
	"fmt"
	"regexp"
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	bankCodeRegex    = regexp.MustCompile(`^[0-9]{3,4}$`)
	bankAccountRegex = regexp.MustCompile(`^[0-9][0-9\-]{4,30}$`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateBankCode validates a clearing bank code (3 or 4 digits)
func ValidateBankCode(code string) error {
	if !bankCodeRegex.MatchString(code) {
		return fmt.Errorf("invalid bank code: %s", code)
	}
	return nil
}

// ValidateBankAccount validates a bank account number (digits, optionally
// dash-separated)
func ValidateBankAccount(account string) error {
	if !bankAccountRegex.MatchString(account) {
		return fmt.Errorf("invalid bank account: %s", account)
	}
	return nil
}
