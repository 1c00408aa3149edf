package httpserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserID(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateUserID("user-1_ok"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("bad id with spaces"))
	assert.Error(t, ValidateUserID(strings.Repeat("a", 129)))
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	page, limit, result := ValidatePagination("", "")
	assert.True(t, result.Valid())
	assert.Equal(t, 1, page)
	assert.Equal(t, 50, limit)

	page, limit, result = ValidatePagination("2", "10")
	assert.True(t, result.Valid())
	assert.Equal(t, 2, page)
	assert.Equal(t, 10, limit)

	_, _, result = ValidatePagination("0", "101")
	assert.False(t, result.Valid())
	assert.Len(t, result.Errors, 2)
}

func TestValidateSearchQuery(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateSearchQuery(""))
	assert.NoError(t, ValidateSearchQuery("promo game 1"))
	assert.Error(t, ValidateSearchQuery("bad;query"))
	assert.Error(t, ValidateSearchQuery(strings.Repeat("a", 201)))
}

func TestValidateStatus(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateStatus(""))
	assert.NoError(t, ValidateStatus("Premium"))
	assert.Error(t, ValidateStatus("gold"))
}

func TestSanitizeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "hello", SanitizeString("  hello\x00", 0))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
}

func TestSanitizeUserID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc-123", SanitizeUserID("abc-123!@#"))
	assert.Equal(t, strings.Repeat("a", 128), SanitizeUserID(strings.Repeat("a", 200)))
}
