package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/apperr"
	"golang.org/x/crypto/bcrypt"
)

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"bob", "alice_99", "a.b@c+d-e"} {
		assert.NoError(t, ValidateUsername(ok), ok)
	}
	for _, bad := range []string{"", "ab", strings.Repeat("x", 151), "has space", "semi;colon"} {
		assert.True(t, apperr.IsCode(ValidateUsername(bad), apperr.CodeInvalidInput), bad)
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("bob@example.com"))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Bob <bob@example.com>"))
}

func TestValidatePassword(t *testing.T) {
	assert.Error(t, ValidatePassword("short"))
	assert.NoError(t, ValidatePassword("longenough"))
	assert.Error(t, ValidatePassword(strings.Repeat("p", 73)))
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	ok, err := CheckPassword(hash, "s3cret-pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "wrong-pass")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = CheckPassword("not-a-hash", "x")
	assert.Error(t, err)
}

func TestNewVerificationCode(t *testing.T) {
	seen := map[string]bool{}
	for range 50 {
		code, err := NewVerificationCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^\d{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}
