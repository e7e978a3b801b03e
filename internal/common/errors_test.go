package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserError(t *testing.T) {
	t.Run("with wrapped error", func(t *testing.T) {
		inner := errors.New("db locked")
		err := NewUserError("cache unavailable", inner)
		assert.Equal(t, "cache unavailable: db locked", err.Error())
		assert.ErrorIs(t, err, inner)
	})

	t.Run("message only", func(t *testing.T) {
		err := NewUserError("nothing found", nil)
		assert.Equal(t, "nothing found", err.Error())
	})
}
