package moderr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(KindNone, KindOf(nil))
	assert.Equal(KindForbidden, KindOf(fmt.Errorf("ban: %w", ErrForbidden)))
	assert.Equal(KindOutOfRange, KindOf(fmt.Errorf("timeout: %w", ErrOutOfRange)))
	assert.Equal(KindUnsupported, KindOf(fmt.Errorf("purge: %w", ErrUnsupported)))
	assert.Equal(KindUnknown, KindOf(errors.New("boom")))
}

func TestTransient(t *testing.T) {
	assert := assert.New(t)

	assert.Nil(Transient("insert case", nil))

	cause := errors.New("connection reset")
	err := Transient("insert case", cause)
	assert.ErrorIs(err, ErrTransientIO)
	assert.ErrorIs(err, cause)
	assert.False(IsTerminal(err))
}

func TestIsTerminal(t *testing.T) {
	for _, err := range []error{ErrUnauthorized, ErrForbidden, ErrInsufficientBotPermission, ErrInvalidFormat, ErrOutOfRange, ErrUnsupported} {
		assert.True(t, IsTerminal(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
	assert.False(t, IsTerminal(ErrNotFound))
	assert.False(t, IsTerminal(ErrTransientIO))
}

func TestExplain(t *testing.T) {
	assert.Empty(t, Explain(nil))
	assert.Contains(t, Explain(ErrOutOfRange), "28 days")
	assert.Contains(t, Explain(ErrForbidden), "higher roles")
	assert.Contains(t, Explain(ErrUnsupported), "not available")
}
