package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	err := NewDomainError("trial", "Find", ErrNotFound, "trial request not found")

	assert.Equal(t, "trial.Find: trial request not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrEmptyValue)

	wrapped := fmt.Errorf("sync: %w", err)
	assert.ErrorIs(t, wrapped, err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestIsNotFound(t *testing.T) {
	session := NewDomainError("session", "Find", ErrNotFound, "session not found")
	rating := NewDomainError("trial", "Complete", ErrValueOutOfRange, "rating must be between 1 and 5")

	assert.True(t, IsNotFound(session))
	assert.True(t, IsNotFound(fmt.Errorf("load: %w", session)))
	assert.False(t, IsNotFound(rating))
	assert.False(t, IsNotFound(errors.New("connection reset")))
	assert.False(t, IsNotFound(nil))
}

func TestIsInvalid(t *testing.T) {
	code := NewDomainError("currency", "Validate", ErrEmptyValue, "currency code is empty")
	rating := NewDomainError("trial", "Complete", ErrValueOutOfRange, "rating must be between 1 and 5")
	missing := NewDomainError("currency", "Fetch", ErrNotFound, "target currency not quoted")

	assert.True(t, IsInvalid(code))
	assert.True(t, IsInvalid(rating))
	assert.False(t, IsInvalid(missing))
	assert.False(t, IsInvalid(nil))
}

func TestIsCacheMiss(t *testing.T) {
	assert.True(t, IsCacheMiss(fmt.Errorf("redis: %w", ErrCacheMiss)))
	assert.False(t, IsCacheMiss(errors.New("other")))
}
