package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alex@example.com"))
	assert.NoError(t, ValidateEmail("fin.reviewer+test@sub.example.co"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("missing@tld"))
	assert.Error(t, ValidateEmail(""))
}

func TestValidateBankCode(t *testing.T) {
	assert.NoError(t, ValidateBankCode("807"))
	assert.NoError(t, ValidateBankCode("0123"))
	assert.Error(t, ValidateBankCode("12"))
	assert.Error(t, ValidateBankCode("80a"))
	assert.Error(t, ValidateBankCode(""))
}

func TestValidateBankAccount(t *testing.T) {
	assert.NoError(t, ValidateBankAccount("001-2233445"))
	assert.NoError(t, ValidateBankAccount("5551234567"))
	assert.Error(t, ValidateBankAccount("-12345"))
	assert.Error(t, ValidateBankAccount("abc"))
	assert.Error(t, ValidateBankAccount(""))
}
